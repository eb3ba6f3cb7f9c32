// Copyright 2025 Certen Protocol
//
// Hash-chain verifier: decides whether a candidate ESP token belongs to the
// chain terminating in the active anchor, or crosses over into the chain
// terminating in the next anchor.

package hashchain

import (
	"bytes"

	"github.com/hip-tpa/tpacore/pkg/tpahash"
)

// Outcome is the three-way verdict of verify_hchain.
type Outcome int

const (
	// Fail means the candidate was not found within window hops of either
	// the active or the next anchor.
	Fail Outcome = iota
	// Same means the candidate is window-or-fewer hops into the chain that
	// terminates in the active anchor; the caller should advance
	// active <- candidate.
	Same
	// Transition means the candidate crossed over into the chain that
	// terminates in the next anchor; the caller advances the full SA
	// transition.
	Transition
)

// Result carries the verdict plus how many hops were walked, which the
// caller needs to know how far the anchor advanced.
type Result struct {
	Outcome Outcome
	Steps   int
}

// RootVerifier is invoked once per hop, when the chain's root is present,
// to additionally confirm the hop's hash still folds up to that root. A
// nil RootVerifier skips this check.
type RootVerifier func(hopHash []byte) bool

// Verify implements verify_hchain(active, next, candidate, window, ...).
//
// It walks h0 = candidate, h(k+1) = H(h(k)) for up to window steps. A
// candidate equal to active itself is a duplicate (no progress) and is
// Fail.
func Verify(mode tpahash.Mode, active, next, candidate []byte, window int, length int, rootCheck RootVerifier) Result {
	if bytes.Equal(candidate, active) {
		return Result{Outcome: Fail}
	}

	hop := candidate
	for k := 1; k <= window; k++ {
		hop = tpahash.Digest(mode, hop, length)
		if bytes.Equal(hop, active) {
			if rootCheck != nil && !rootCheck(hop) {
				break
			}
			return Result{Outcome: Same, Steps: k}
		}
	}

	if len(next) == 0 || isZero(next) {
		return Result{Outcome: Fail}
	}

	hop = candidate
	for k := 0; k <= window; k++ {
		if bytes.Equal(hop, next) {
			if rootCheck != nil && !rootCheck(hop) {
				break
			}
			return Result{Outcome: Transition, Steps: k}
		}
		hop = tpahash.Digest(mode, hop, length)
	}

	return Result{Outcome: Fail}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
