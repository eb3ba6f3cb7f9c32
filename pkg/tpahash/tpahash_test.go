// Copyright 2025 Certen Protocol

package tpahash

import (
	"bytes"
	"testing"
)

func TestDigestLength(t *testing.T) {
	d := Digest(ModeSHA256, []byte("hello"), 20)
	if len(d) != 20 {
		t.Fatalf("got length %d, want 20", len(d))
	}
}

func TestDigestDeterministic(t *testing.T) {
	a := Digest(ModeSHA256, []byte("hello"), 32)
	b := Digest(ModeSHA256, []byte("hello"), 32)
	if !bytes.Equal(a, b) {
		t.Fatalf("same input produced different digests")
	}
}

func TestLeafMixesSecret(t *testing.T) {
	data := []byte("payload")
	l1 := Leaf(ModeSHA256, data, []byte("secret-a"), 32)
	l2 := Leaf(ModeSHA256, data, []byte("secret-b"), 32)
	if bytes.Equal(l1, l2) {
		t.Fatalf("leaf generator ignored the secret")
	}
}

func TestNodeOrderMatters(t *testing.T) {
	left := Digest(ModeSHA256, []byte("left"), 32)
	right := Digest(ModeSHA256, []byte("right"), 32)
	n1 := Node(ModeSHA256, left, right)
	n2 := Node(ModeSHA256, right, left)
	if bytes.Equal(n1, n2) {
		t.Fatalf("node generator is order-independent, want order-sensitive")
	}
}

func TestNodeLengthMatchesInputs(t *testing.T) {
	left := Digest(ModeSHA256, []byte("left"), 20)
	right := Digest(ModeSHA256, []byte("right"), 20)
	n := Node(ModeSHA256, left, right)
	if len(n) != 20 {
		t.Fatalf("got length %d, want 20", len(n))
	}
}

func TestKeccakModeDiffersFromSHA256(t *testing.T) {
	a := Digest(ModeSHA256, []byte("same input"), 32)
	b := Digest(ModeKeccak256, []byte("same input"), 32)
	if bytes.Equal(a, b) {
		t.Fatalf("sha256 and keccak256 produced identical digests")
	}
}

func TestLog2Ceil(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4}
	for n, want := range cases {
		if got := Log2Ceil(n); got != want {
			t.Errorf("Log2Ceil(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestPow2(t *testing.T) {
	for e := 0; e < 8; e++ {
		got := Pow2(e)
		want := 1 << uint(e)
		if got != want {
			t.Errorf("Pow2(%d) = %d, want %d", e, got, want)
		}
	}
}

func TestDigestOversizeLengthPads(t *testing.T) {
	// hash_length beyond the native digest size must still produce the
	// requested number of bytes (padding, not truncating to native size).
	d := Digest(ModeSHA256, []byte("hello"), 64)
	if len(d) != 64 {
		t.Fatalf("got length %d, want 64", len(d))
	}
}
