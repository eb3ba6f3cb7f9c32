// Copyright 2025 Certen Protocol

package tpaerr

import (
	"errors"
	"testing"
)

func TestErrorsIsMatchesSentinel(t *testing.T) {
	err := Replay(42)
	if !errors.Is(err, ErrReplay) {
		t.Fatalf("errors.Is(Replay(42), ErrReplay) = false, want true")
	}
	if errors.Is(err, ErrMalformed) {
		t.Fatalf("Replay error unexpectedly matched ErrMalformed")
	}
}

func TestCodeString(t *testing.T) {
	cases := map[Code]string{
		CodeUnsupported:    "Unsupported",
		CodeMismatch:       "Mismatch",
		CodeMalformed:      "Malformed",
		CodeReplay:         "Replay",
		CodeVerifyFailed:   "VerifyFailed",
		CodeCacheMiss:      "CacheMiss",
		CodeNotImplemented: "NotImplemented",
		CodeConfig:         "Config",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("Code(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestConstructorsTagCorrectCode(t *testing.T) {
	checks := []struct {
		err  *Error
		want Code
	}{
		{Unsupported("TREE"), CodeUnsupported},
		{Mismatch("a", "b"), CodeMismatch},
		{Malformed("truncated"), CodeMalformed},
		{Replay(7), CodeReplay},
		{VerifyFailed("window exhausted"), CodeVerifyFailed},
		{CacheMiss(9), CodeCacheMiss},
		{NotImplemented("mutual UPDATE"), CodeNotImplemented},
		{Config("bad bounds"), CodeConfig},
	}
	for _, c := range checks {
		if c.err.Code != c.want {
			t.Errorf("got code %v, want %v", c.err.Code, c.want)
		}
		if c.err.Error() == "" {
			t.Errorf("error message is empty for code %v", c.want)
		}
	}
}
