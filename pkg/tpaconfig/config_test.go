// Copyright 2025 Certen Protocol

package tpaconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hip-tpa/tpacore/pkg/tpawire"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate cleanly: %v", err)
	}
}

func TestApplyTransformDefaultsCumulative(t *testing.T) {
	cfg := Defaults()
	cfg.TokenConfig.Transform = tpawire.TransformCumulative
	cfg.applyTransformDefaults()
	if cfg.TokenConfig.TokenModes.RingBufferSize != 64 {
		t.Errorf("ring_buffer_size = %d, want 64", cfg.TokenConfig.TokenModes.RingBufferSize)
	}
	if cfg.TokenConfig.TokenModes.NumLinearElements != 1 {
		t.Errorf("num_linear_elements = %d, want 1", cfg.TokenConfig.TokenModes.NumLinearElements)
	}
}

func TestApplyTransformDefaultsParallel(t *testing.T) {
	cfg := Defaults()
	cfg.TokenConfig.Transform = tpawire.TransformParallel
	cfg.applyTransformDefaults()
	if cfg.TokenConfig.TokenModes.NumParallelHChains != 2 {
		t.Errorf("num_parallel_hchains = %d, want 2", cfg.TokenConfig.TokenModes.NumParallelHChains)
	}
}

func TestValidateRejectsBadHashLength(t *testing.T) {
	cfg := Defaults()
	cfg.TokenConfig.HashLength = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for hash_length = 0")
	}
}

func TestValidateRequiresRingForCumulative(t *testing.T) {
	cfg := Defaults()
	cfg.TokenConfig.Transform = tpawire.TransformCumulative
	cfg.TokenConfig.TokenModes.RingBufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error: CUMULATIVE with ring_buffer_size = 0")
	}
}

func TestValidateRejectsBadDigestMode(t *testing.T) {
	cfg := Defaults()
	cfg.Verifier.DigestMode = "md5"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for an unknown digest_mode")
	}
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "token_config:\n  hash_length: ${TPA_TEST_HASH_LENGTH:-20}\n  transform: PLAIN\nverifier:\n  digest_mode: sha256\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	os.Setenv("TPA_TEST_HASH_LENGTH", "32")
	defer os.Unsetenv("TPA_TEST_HASH_LENGTH")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenConfig.HashLength != 32 {
		t.Errorf("hash_length = %d, want 32 (from env)", cfg.TokenConfig.HashLength)
	}
}

func TestLoadFallsBackToDefaultWhenEnvUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "token_config:\n  hash_length: ${TPA_TEST_UNSET_VAR:-24}\n  transform: PLAIN\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenConfig.HashLength != 24 {
		t.Errorf("hash_length = %d, want 24 (from default)", cfg.TokenConfig.HashLength)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "token_config:\n  hash_length: 0\n  transform: PLAIN\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected a validation error from Load")
	}
}
