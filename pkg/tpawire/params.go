// Copyright 2025 Certen Protocol
//
// Typed accessors over the HIP control-message parameters the TPA engine
// consumes: ANCHOR, ROOT, BRANCH, SECRET. Parsing stays in one place so
// bounds checks aren't repeated at every call site.

package tpawire

import (
	"encoding/binary"
	"fmt"
)

// AnchorParam is one ANCHOR parameter: { transform, hash_item_length,
// anchors: u8[2*L] } where the first L bytes are the active anchor and the
// second L bytes are the next anchor (all-zero if none).
type AnchorParam struct {
	Transform      TransformID
	HashItemLength uint32
	Active         []byte
	Next           []byte
}

// ParseAnchorParam decodes a raw ANCHOR parameter body. hashLength is the
// negotiated L; the parameter body must be exactly 1 + 4 + 2*hashLength
// bytes (transform u8, hash_item_length u32 network order, anchors).
func ParseAnchorParam(body []byte, hashLength int) (*AnchorParam, error) {
	want := 1 + 4 + 2*hashLength
	if len(body) != want {
		return nil, fmt.Errorf("ANCHOR parameter: want %d bytes, got %d", want, len(body))
	}
	transform := TransformID(body[0])
	itemLen := binary.BigEndian.Uint32(body[1:5])
	active := append([]byte(nil), body[5:5+hashLength]...)
	next := append([]byte(nil), body[5+hashLength:5+2*hashLength]...)
	return &AnchorParam{
		Transform:      transform,
		HashItemLength: itemLen,
		Active:         active,
		Next:           next,
	}, nil
}

// RootParam is a ROOT parameter: { root_length, root: u8[root_length] }.
type RootParam struct {
	RootLength int
	Root       []byte
}

// ParseRootParam decodes a raw ROOT parameter body (one length-prefixed
// byte string: a single u16 length followed by that many bytes).
func ParseRootParam(body []byte) (*RootParam, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("ROOT parameter: truncated length prefix")
	}
	length := int(binary.BigEndian.Uint16(body[:2]))
	if len(body) != 2+length {
		return nil, fmt.Errorf("ROOT parameter: want %d bytes, got %d", 2+length, len(body))
	}
	return &RootParam{RootLength: length, Root: append([]byte(nil), body[2:]...)}, nil
}

// BranchParam is a BRANCH parameter: { branch_length, anchor_offset,
// branch_nodes: u8[branch_length] }, where branch_nodes is parsed into
// siblingCount siblings of hashLength bytes each.
type BranchParam struct {
	AnchorOffset int
	Siblings     [][]byte
}

// ParseBranchParam decodes a raw BRANCH parameter body: a u16 anchor
// offset, a u16 sibling count, then siblingCount*hashLength bytes of
// sibling node data, ordered bit 0 (deepest) first.
func ParseBranchParam(body []byte, hashLength int) (*BranchParam, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("BRANCH parameter: truncated header")
	}
	offset := int(binary.BigEndian.Uint16(body[:2]))
	count := int(binary.BigEndian.Uint16(body[2:4]))
	want := 4 + count*hashLength
	if len(body) != want {
		return nil, fmt.Errorf("BRANCH parameter: want %d bytes, got %d", want, len(body))
	}
	siblings := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := 4 + i*hashLength
		siblings[i] = append([]byte(nil), body[start:start+hashLength]...)
	}
	return &BranchParam{AnchorOffset: offset, Siblings: siblings}, nil
}

// SecretParam is a SECRET parameter: { secret_length, secret:
// u8[secret_length] }.
type SecretParam struct {
	Secret []byte
}

// ParseSecretParam decodes a raw SECRET parameter body (u16 length prefix
// followed by that many bytes, same layout as ROOT).
func ParseSecretParam(body []byte) (*SecretParam, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("SECRET parameter: truncated length prefix")
	}
	length := int(binary.BigEndian.Uint16(body[:2]))
	if len(body) != 2+length {
		return nil, fmt.Errorf("SECRET parameter: want %d bytes, got %d", 2+length, len(body))
	}
	return &SecretParam{Secret: append([]byte(nil), body[2:]...)}, nil
}

// ParsePreferredTransforms decodes the R1 PREFERRED_TRANSFORMS parameter:
// (num_transforms: u8, transforms: u8[num_transforms]).
func ParsePreferredTransforms(body []byte) ([]TransformID, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("PREFERRED_TRANSFORMS: empty body")
	}
	n := int(body[0])
	if len(body) != 1+n {
		return nil, fmt.Errorf("PREFERRED_TRANSFORMS: want %d bytes, got %d", 1+n, len(body))
	}
	out := make([]TransformID, n)
	for i := 0; i < n; i++ {
		out[i] = TransformID(body[1+i])
	}
	return out, nil
}

// EncodePreferredTransforms renders a PREFERRED_TRANSFORMS parameter body.
func EncodePreferredTransforms(transforms []TransformID) []byte {
	out := make([]byte, 1+len(transforms))
	out[0] = byte(len(transforms))
	for i, t := range transforms {
		out[1+i] = byte(t)
	}
	return out
}
