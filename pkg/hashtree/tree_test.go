// Copyright 2025 Certen Protocol

package hashtree

import (
	"testing"

	"github.com/hip-tpa/tpacore/pkg/tpahash"
)

const hashLength = 32

func buildFourLeafTree(data [][]byte, secret []byte) (root []byte, branches [][][]byte) {
	leaves := make([][]byte, len(data))
	for i, d := range data {
		leaves[i] = tpahash.Leaf(tpahash.ModeSHA256, d, secret, hashLength)
	}

	// level 1: two internal nodes
	n0 := tpahash.Node(tpahash.ModeSHA256, leaves[0], leaves[1])
	n1 := tpahash.Node(tpahash.ModeSHA256, leaves[2], leaves[3])
	// root
	r := tpahash.Node(tpahash.ModeSHA256, n0, n1)

	// branch for leaf index i: bit0 selects sibling at level 0, bit1 at level 1
	branches = make([][][]byte, len(data))
	branches[0] = [][]byte{leaves[1], n1}
	branches[1] = [][]byte{leaves[0], n1}
	branches[2] = [][]byte{leaves[3], n0}
	branches[3] = [][]byte{leaves[2], n0}

	return r, branches
}

func TestVerifyBranchAcceptsEachLeaf(t *testing.T) {
	secret := []byte("tree-secret")
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	root, branches := buildFourLeafTree(data, secret)

	for i := range data {
		if !VerifyBranch(tpahash.ModeSHA256, root, branches[i], data[i], secret, i, hashLength) {
			t.Errorf("leaf %d failed to verify against the root", i)
		}
	}
}

func TestVerifyBranchRejectsFlippedRoot(t *testing.T) {
	secret := []byte("tree-secret")
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	root, branches := buildFourLeafTree(data, secret)
	root[0] ^= 0xFF

	if VerifyBranch(tpahash.ModeSHA256, root, branches[0], data[0], secret, 0, hashLength) {
		t.Fatalf("expected verification failure on a flipped root")
	}
}

func TestVerifyBranchRejectsFlippedSibling(t *testing.T) {
	secret := []byte("tree-secret")
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	root, branches := buildFourLeafTree(data, secret)
	tampered := append([][]byte(nil), branches[0]...)
	tamperedSibling := append([]byte(nil), tampered[len(tampered)-1]...)
	tamperedSibling[0] ^= 0xFF
	tampered[len(tampered)-1] = tamperedSibling

	if VerifyBranch(tpahash.ModeSHA256, root, tampered, data[0], secret, 0, hashLength) {
		t.Fatalf("expected verification failure on a flipped sibling")
	}
}

func TestVerifyBranchRejectsWrongLeafIndex(t *testing.T) {
	secret := []byte("tree-secret")
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	root, branches := buildFourLeafTree(data, secret)

	if VerifyBranch(tpahash.ModeSHA256, root, branches[0], data[0], secret, 1, hashLength) {
		t.Fatalf("expected verification failure when leaf index selects the wrong ordering")
	}
}

func TestVerifyBranchRejectsWrongSecret(t *testing.T) {
	secret := []byte("tree-secret")
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	root, branches := buildFourLeafTree(data, secret)

	if VerifyBranch(tpahash.ModeSHA256, root, branches[0], data[0], []byte("wrong-secret"), 0, hashLength) {
		t.Fatalf("expected verification failure on the wrong secret")
	}
}

func TestVerifyBranchRejectsWrongData(t *testing.T) {
	secret := []byte("tree-secret")
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	root, branches := buildFourLeafTree(data, secret)

	if VerifyBranch(tpahash.ModeSHA256, root, branches[0], []byte("not-a"), secret, 0, hashLength) {
		t.Fatalf("expected verification failure on the wrong leaf data")
	}
}

func TestTreeDepth(t *testing.T) {
	if got := TreeDepth(4); got != 2 {
		t.Errorf("TreeDepth(4) = %d, want 2", got)
	}
	if got := TreeDepth(5); got != 3 {
		t.Errorf("TreeDepth(5) = %d, want 3", got)
	}
}
