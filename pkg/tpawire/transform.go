// Copyright 2025 Certen Protocol
//
// Transform identifier enumeration — fully determines the
// shape of a security association's per-direction state.

package tpawire

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TransformID enumerates the wire-level transform identifiers.
type TransformID uint8

const (
	TransformUnused TransformID = iota
	TransformPlain
	TransformParallel
	TransformCumulative
	TransformParaCumul
	TransformTree
)

// NumTransforms is the count of defined transform identifiers (excluding
// UNUSED), used to size the R1 preferred-transforms table.
const NumTransforms = 5

func (t TransformID) String() string {
	switch t {
	case TransformUnused:
		return "UNUSED"
	case TransformPlain:
		return "PLAIN"
	case TransformParallel:
		return "PARALLEL"
	case TransformCumulative:
		return "CUMULATIVE"
	case TransformParaCumul:
		return "PARA_CUMUL"
	case TransformTree:
		return "TREE"
	default:
		return "INVALID"
	}
}

// ParseTransformID maps a config-file transform name to its TransformID.
func ParseTransformID(name string) (TransformID, error) {
	switch name {
	case "UNUSED", "":
		return TransformUnused, nil
	case "PLAIN":
		return TransformPlain, nil
	case "PARALLEL":
		return TransformParallel, nil
	case "CUMULATIVE":
		return TransformCumulative, nil
	case "PARA_CUMUL":
		return TransformParaCumul, nil
	case "TREE":
		return TransformTree, nil
	default:
		return 0, fmt.Errorf("unknown transform %q", name)
	}
}

// UnmarshalYAML lets config files name a transform by its string constant
// (e.g. "PLAIN") instead of its numeric wire value.
func (t *TransformID) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	id, err := ParseTransformID(s)
	if err != nil {
		return err
	}
	*t = id
	return nil
}

// MarshalYAML renders a transform by its string constant.
func (t TransformID) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// IsValid reports whether t is one of the six defined transform values.
func (t TransformID) IsValid() bool {
	switch t {
	case TransformUnused, TransformPlain, TransformParallel, TransformCumulative, TransformParaCumul, TransformTree:
		return true
	default:
		return false
	}
}

// HasCumulativeRing reports whether the transform carries a cumulative
// ring buffer.
func (t TransformID) HasCumulativeRing() bool {
	return t == TransformCumulative || t == TransformParaCumul
}

// HasTree reports whether the transform maintains a Merkle root instead of
// chaining anchors directly.
func (t TransformID) HasTree() bool {
	return t == TransformTree
}

// DefaultNumChains returns the parallel-chain count a transform defaults
// to before any explicit configuration override.
func (t TransformID) DefaultNumChains() int {
	if t == TransformParallel {
		return 2
	}
	return 1
}

// IsSupported reports whether t is a transform this module implements.
// The supported set is fixed and is the same as the valid set (IsValid).
func (t TransformID) IsSupported() bool {
	return t.IsValid()
}

// NormalizePreferred clamps an R1-advertised preferred-transforms list to
// at most NumTransforms+1 entries, normalizing any transform ID the local
// capability table does not recognize to UNUSED.
func NormalizePreferred(advertised []TransformID) []TransformID {
	limit := NumTransforms + 1
	if len(advertised) > limit {
		advertised = advertised[:limit]
	}
	out := make([]TransformID, len(advertised))
	for i, t := range advertised {
		if t.IsSupported() {
			out[i] = t
		} else {
			out[i] = TransformUnused
		}
	}
	return out
}
