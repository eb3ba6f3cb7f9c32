// Copyright 2025 Certen Protocol
//
// Configuration surface for the TPA engine: a YAML tree with ${VAR_NAME}
// environment-variable substitution, sensible defaults, and sanity
// checks.

package tpaconfig

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hip-tpa/tpacore/pkg/tpaerr"
	"github.com/hip-tpa/tpacore/pkg/tpawire"
)

// Config is the root of the configuration tree. It mirrors the
// token_config.*, token_config.token_modes.*, sender.hcstore.*, sender.*,
// and verifier.* namespaces.
type Config struct {
	TokenConfig TokenConfig `yaml:"token_config"`
	Sender      Sender      `yaml:"sender"`
	Verifier    Verifier    `yaml:"verifier"`
}

// TokenConfig holds the per-token tunables.
type TokenConfig struct {
	Transform       tpawire.TransformID `yaml:"transform"`
	HashLength      int                 `yaml:"hash_length"`
	StructureLength int                 `yaml:"hash_structure_length"`
	WindowSize      int                 `yaml:"window_size"`
	TokenModes      TokenModes          `yaml:"token_modes"`
}

// TokenModes holds the per-transform-shape tunables, namespaced under
// token_config.token_modes.* on the wire.
type TokenModes struct {
	NumParallelHChains int     `yaml:"num_parallel_hchains"`
	RingBufferSize     int     `yaml:"ring_buffer_size"`
	NumLinearElements  int     `yaml:"num_linear_elements"`
	NumRandomElements  int     `yaml:"num_random_elements"`
	NumHChainsPerItem  int     `yaml:"num_hchains_per_item"`
	NumHierarchies     int     `yaml:"num_hierarchies"`
	RefillThreshold    float64 `yaml:"refill_threshold"`
	UpdateThreshold    float64 `yaml:"update_threshold"`
}

// Sender holds sender/hash-chain-store tunables, namespaced under
// sender.hcstore.* and sender.*.
type Sender struct {
	HCStore HCStore `yaml:"hcstore"`
}

// HCStore is the hash-chain store's own knobs (generation lives outside
// this module's scope; these are the bookkeeping knobs the core reads).
type HCStore struct {
	RefillThreshold float64 `yaml:"refill_threshold"`
}

// Verifier holds verifier-side tunables.
type Verifier struct {
	DigestMode string `yaml:"digest_mode"` // "sha256" or "keccak256"
}

// Defaults returns the table of built-in defaults.
func Defaults() *Config {
	return &Config{
		TokenConfig: TokenConfig{
			Transform:       tpawire.TransformUnused,
			HashLength:      20,
			StructureLength: 16,
			WindowSize:      64,
			TokenModes: TokenModes{
				NumParallelHChains: 1,
				RingBufferSize:     0,
				NumLinearElements:  0,
				NumRandomElements:  0,
				NumHChainsPerItem:  8,
				NumHierarchies:     1,
				RefillThreshold:    0.5,
				UpdateThreshold:    0.5,
			},
		},
		Sender: Sender{HCStore: HCStore{RefillThreshold: 0.5}},
		Verifier: Verifier{DigestMode: "sha256"},
	}
}

// applyTransformDefaults fills in the transform-dependent defaults of the
// token_modes table (1 chain for PLAIN/CUMUL/TREE, 2 for PARALLEL, ...)
// when the caller left them at the zero value or, for PARALLEL's chain
// count, at the single-chain value Defaults fills in.
func (c *Config) applyTransformDefaults() {
	tm := &c.TokenConfig.TokenModes
	switch c.TokenConfig.Transform {
	case tpawire.TransformParallel:
		if tm.NumParallelHChains == 0 || tm.NumParallelHChains == 1 {
			tm.NumParallelHChains = 2
		}
	case tpawire.TransformCumulative, tpawire.TransformParaCumul:
		if tm.NumParallelHChains == 0 {
			tm.NumParallelHChains = 1
		}
		if tm.RingBufferSize == 0 {
			tm.RingBufferSize = 64
		}
		if tm.NumLinearElements == 0 {
			tm.NumLinearElements = 1
		}
	default:
		if tm.NumParallelHChains == 0 {
			tm.NumParallelHChains = 1
		}
	}
}

// Load reads a YAML config file, substituting ${VAR_NAME} (and
// ${VAR_NAME:-default}) environment references, applies the defaults table
// for anything left unset, and runs Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tpaerr.Config(fmt.Sprintf("read %s: %v", path, err))
	}

	expanded := substituteEnvVars(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, tpaerr.Config(fmt.Sprintf("parse %s: %v", path, err))
	}

	cfg.applyTransformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate runs the configuration's bounds checks. Sanity-check
// failures are reported as Config errors; they are never masked.
func (c *Config) Validate() error {
	var problems []string

	if !c.TokenConfig.Transform.IsValid() {
		problems = append(problems, "token_config.transform is not a valid enum value")
	}
	if c.TokenConfig.HashLength <= 0 || c.TokenConfig.HashLength > 64 {
		problems = append(problems, "token_config.hash_length must be in (0, 64]")
	}
	if c.TokenConfig.StructureLength <= 0 {
		problems = append(problems, "token_config.hash_structure_length must be > 0")
	}
	if c.TokenConfig.WindowSize <= 0 {
		problems = append(problems, "token_config.window_size must be > 0")
	}

	tm := c.TokenConfig.TokenModes
	if tm.NumParallelHChains <= 0 {
		problems = append(problems, "token_config.token_modes.num_parallel_hchains must be > 0")
	}
	if tm.RingBufferSize < 0 {
		problems = append(problems, "token_config.token_modes.ring_buffer_size must be >= 0")
	}
	if tm.NumLinearElements < 0 {
		problems = append(problems, "token_config.token_modes.num_linear_elements must be >= 0")
	}
	if tm.NumRandomElements < 0 {
		problems = append(problems, "token_config.token_modes.num_random_elements must be >= 0")
	}
	if tm.NumHChainsPerItem <= 0 {
		problems = append(problems, "token_config.token_modes.num_hchains_per_item must be > 0")
	}
	if tm.NumHierarchies <= 0 {
		problems = append(problems, "token_config.token_modes.num_hierarchies must be > 0")
	}
	if tm.RefillThreshold < 0 || tm.RefillThreshold > 1 {
		problems = append(problems, "token_config.token_modes.refill_threshold must be in [0.0, 1.0]")
	}
	if tm.UpdateThreshold < 0 || tm.UpdateThreshold > 1 {
		problems = append(problems, "token_config.token_modes.update_threshold must be in [0.0, 1.0]")
	}

	needsRing := c.TokenConfig.Transform == tpawire.TransformCumulative || c.TokenConfig.Transform == tpawire.TransformParaCumul
	if needsRing && tm.RingBufferSize <= 0 {
		problems = append(problems, "ring_buffer_size must be > 0 for CUMULATIVE/PARA_CUMUL transforms")
	}

	switch c.Verifier.DigestMode {
	case "", "sha256", "keccak256":
	default:
		problems = append(problems, "verifier.digest_mode must be sha256 or keccak256")
	}

	if len(problems) > 0 {
		return tpaerr.Config(strings.Join(problems, "; "))
	}
	return nil
}
