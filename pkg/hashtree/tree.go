// Copyright 2025 Certen Protocol
//
// Hash-tree (Merkle / link-tree) verifier for TREE-transform anchors and
// for the light-UPDATE (HHL) branch proofs: a binary Merkle tree verifier
// generalized to the keyed leaf generator L(data, secret), with sibling
// ordering driven by the bit pattern of the leaf index.

package hashtree

import (
	"bytes"

	"github.com/hip-tpa/tpacore/pkg/tpahash"
)

// VerifyBranch recomputes the root from leafData/secret and the branch's
// sibling nodes, and compares it against root.
//
// Each sibling in branch is combined in order; bit i of leafIndex (bit 0 is
// the deepest, i.e. branch[0]) selects which side the already-computed node
// sits on: bit == 0 means the running node is the left child and the
// sibling is the right child, bit == 1 is the mirror image. Any deviation
// from this fixed ordering is a verification failure.
func VerifyBranch(mode tpahash.Mode, root []byte, branch [][]byte, leafData, secret []byte, leafIndex int, length int) bool {
	node := tpahash.Leaf(mode, leafData, secret, length)

	for i, sibling := range branch {
		if len(sibling) != length {
			return false
		}
		bit := (leafIndex >> uint(i)) & 1
		if bit == 0 {
			node = tpahash.Node(mode, node, sibling)
		} else {
			node = tpahash.Node(mode, sibling, node)
		}
	}

	return bytes.Equal(node, root)
}

// TreeDepth returns the branch length (number of siblings) needed for a
// tree holding 2^depth leaves.
func TreeDepth(hashItemLength int) int {
	return tpahash.Log2Ceil(hashItemLength)
}
