// Copyright 2025 Certen Protocol

package hashchain

import (
	"testing"

	"github.com/hip-tpa/tpacore/pkg/tpahash"
)

const hashLength = 20

// buildChain returns [x0, x1=H(x0), ..., xn].
func buildChain(seed []byte, n int) [][]byte {
	chain := make([][]byte, n+1)
	chain[0] = tpahash.Digest(tpahash.ModeSHA256, seed, hashLength)
	for i := 1; i <= n; i++ {
		chain[i] = tpahash.Digest(tpahash.ModeSHA256, chain[i-1], hashLength)
	}
	return chain
}

func TestVerifySame(t *testing.T) {
	chain := buildChain([]byte("seed"), 8)
	active := chain[8]
	candidate := chain[5] // 3 hops from the active anchor

	result := Verify(tpahash.ModeSHA256, active, nil, candidate, 4, hashLength, nil)
	if result.Outcome != Same {
		t.Fatalf("got outcome %v, want Same", result.Outcome)
	}
	if result.Steps != 3 {
		t.Fatalf("got steps %d, want 3", result.Steps)
	}
}

func TestVerifyFailsBeyondWindow(t *testing.T) {
	chain := buildChain([]byte("seed"), 8)
	active := chain[8]
	candidate := chain[0] // 8 hops away

	result := Verify(tpahash.ModeSHA256, active, nil, candidate, 4, hashLength, nil)
	if result.Outcome != Fail {
		t.Fatalf("got outcome %v, want Fail", result.Outcome)
	}
}

func TestVerifyDuplicateIsFail(t *testing.T) {
	chain := buildChain([]byte("seed"), 8)
	active := chain[8]

	result := Verify(tpahash.ModeSHA256, active, nil, active, 4, hashLength, nil)
	if result.Outcome != Fail {
		t.Fatalf("candidate equal to active must be Fail, got %v", result.Outcome)
	}
}

func TestVerifyTransition(t *testing.T) {
	oldChain := buildChain([]byte("seed-old"), 8)
	newChain := buildChain([]byte("seed-new"), 8)

	active := oldChain[8]
	next := newChain[8]
	candidate := newChain[6] // 2 hops from the next anchor

	result := Verify(tpahash.ModeSHA256, active, next, candidate, 4, hashLength, nil)
	if result.Outcome != Transition {
		t.Fatalf("got outcome %v, want Transition", result.Outcome)
	}
	if result.Steps != 2 {
		t.Fatalf("got steps %d, want 2", result.Steps)
	}
}

func TestVerifyNoNextAnchorCannotTransition(t *testing.T) {
	chain := buildChain([]byte("seed"), 8)
	active := chain[8]
	allZeroNext := make([]byte, hashLength)

	candidate := make([]byte, hashLength) // equal to the zero next anchor
	result := Verify(tpahash.ModeSHA256, active, allZeroNext, candidate, 8, hashLength, nil)
	if result.Outcome != Fail {
		t.Fatalf("zero next anchor must never match, got %v", result.Outcome)
	}
}

func TestVerifyRootCheckCanVetoAMatch(t *testing.T) {
	chain := buildChain([]byte("seed"), 8)
	active := chain[8]
	candidate := chain[5]

	result := Verify(tpahash.ModeSHA256, active, nil, candidate, 4, hashLength, func([]byte) bool { return false })
	if result.Outcome != Fail {
		t.Fatalf("root check returning false must veto the match, got %v", result.Outcome)
	}
}
