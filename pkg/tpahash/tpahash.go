// Copyright 2025 Certen Protocol
//
// Hash primitives for Token-based Packet Authentication: the keyed digest
// H, the leaf generator L, and the internal-node generator N that the
// hash-chain and hash-tree verifiers are built on.

package tpahash

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/crypto"
)

// Mode selects the underlying digest used by Digest/Leaf/Node.
type Mode int

const (
	// ModeSHA256 is the default digest, matching most HIP TPA deployments.
	ModeSHA256 Mode = iota
	// ModeKeccak256 selects Keccak-256 (via go-ethereum/crypto), offered as
	// an alternate digest for deployments that already standardize on it.
	ModeKeccak256
)

// MaxLength is the largest negotiable hash length L, per the data model.
const MaxLength = 64

func sum(mode Mode, data []byte) []byte {
	switch mode {
	case ModeKeccak256:
		return crypto.Keccak256(data)
	default:
		h := sha256.Sum256(data)
		return h[:]
	}
}

// Digest computes H(data) and truncates (or pads, for very large L) the
// result to length bytes. length must be in [1, MaxLength].
func Digest(mode Mode, data []byte, length int) []byte {
	full := sum(mode, data)
	return fit(full, length)
}

// Leaf computes L(data, secret) = H(data || secret), truncated to length.
func Leaf(mode Mode, data, secret []byte, length int) []byte {
	buf := make([]byte, 0, len(data)+len(secret))
	buf = append(buf, data...)
	buf = append(buf, secret...)
	return Digest(mode, buf, length)
}

// Node computes N(left, right) = H(left || right), truncated to the length
// of its inputs (left and right must already be the same length).
func Node(mode Mode, left, right []byte) []byte {
	buf := make([]byte, 0, len(left)+len(right))
	buf = append(buf, left...)
	buf = append(buf, right...)
	return Digest(mode, buf, len(left))
}

// fit truncates a digest to length bytes, or right-pads by repeating the
// digest's own bytes when a caller asks for more bytes than the underlying digest
// produces (only relevant for length > 32, i.e. ModeSHA256/ModeKeccak256's
// native output).
func fit(full []byte, length int) []byte {
	if length <= len(full) {
		out := make([]byte, length)
		copy(out, full[:length])
		return out
	}
	out := make([]byte, 0, length)
	block := full
	for len(out) < length {
		out = append(out, block...)
	}
	return out[:length]
}

// Log2Ceil returns ceil(log2(n)) for n > 0. Used to derive a TREE
// transform's tree_depth from its negotiated hash_item_length.
func Log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}
	depth := 0
	v := 1
	for v < n {
		v <<= 1
		depth++
	}
	return depth
}

// Pow2 returns 2^e.
func Pow2(e int) int {
	return 1 << uint(e)
}
