// Copyright 2025 Certen Protocol
//
// Per-security-association anchor state. One SA tracks a single direction
// of a single HIP security association: its parallel chains, roots,
// replay window bookkeeping, and the cache of anchor updates still
// awaiting acknowledgement. Single-writer-thread ownership is assumed
// instead of internal locking.

package satable

import (
	"bytes"

	"github.com/hip-tpa/tpacore/pkg/tpahash"
	"github.com/hip-tpa/tpacore/pkg/tpawire"
)

// HashBufferSlot is one entry in a CUMULATIVE/PARA_CUMUL ring buffer: the
// most recently announced (seq, packet_hash) pair for that ring position.
type HashBufferSlot struct {
	Seq        uint32
	PacketHash []byte
}

// PendingAnchorUpdate is a cache entry created on receipt of the first
// message of an anchor-update handshake (standard or light UPDATE). It is
// destroyed when the matching ACK is processed or the SA is torn down.
type PendingAnchorUpdate struct {
	Seq            uint32
	Transform      tpawire.TransformID
	HashItemLength int
	Active         [][]byte
	Next           [][]byte
	RootLength     int
	Roots          [][]byte
}

// AnchorCache holds the pending anchor updates for one SA, newest-first
// newest first. Lookup and removal are linear scans: the cache is
// bounded by outstanding UPDATEs, typically 1-3 entries, so a hashmap
// would not pay for itself.
type AnchorCache struct {
	entries []*PendingAnchorUpdate
}

// Insert adds a new pending update at the front of the cache.
func (c *AnchorCache) Insert(entry *PendingAnchorUpdate) {
	c.entries = append([]*PendingAnchorUpdate{entry}, c.entries...)
}

// Find returns the pending update for seq, or nil if none is cached.
func (c *AnchorCache) Find(seq uint32) *PendingAnchorUpdate {
	for _, e := range c.entries {
		if e.Seq == seq {
			return e
		}
	}
	return nil
}

// Remove deletes the pending update for seq, if present.
func (c *AnchorCache) Remove(seq uint32) {
	for i, e := range c.entries {
		if e.Seq == seq {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Len reports the number of pending updates cached.
func (c *AnchorCache) Len() int {
	return len(c.entries)
}

// SA is the per-direction security-association anchor state. Every field
// is owned exclusively by the tracker managing this SA;
// callers must not mutate it from more than one goroutine concurrently.
type SA struct {
	Transform      tpawire.TransformID
	NumChains      int
	HashItemLength int
	TreeDepth      int // meaningful only when Transform == TREE
	RingSize       int

	ActiveAnchors      [][]byte
	FirstActiveAnchors [][]byte
	NextAnchors        [][]byte

	ActiveRoots     [][]byte
	NextRoots       [][]byte
	ActiveRootLen   int
	NextRootLen     []int

	SeqNo       uint32
	HashBuffer  []HashBufferSlot
	AnchorCache AnchorCache
	LUpdateSeq  uint32

	// CumulativeItemCount is k = num_linear + num_random from the
	// negotiated token_modes, meaningful only for CUMULATIVE/PARA_CUMUL.
	// It tells the verifier how many trailing (seq, packet_hash) items
	// follow the token in each ESP extension.
	CumulativeItemCount int
}

// New allocates a zeroed SA sized for the given transform, chain count,
// hash item length, and (for cumulative transforms) ring size.
func New(transform tpawire.TransformID, numChains, hashItemLength, ringSize int) *SA {
	sa := &SA{
		Transform:          transform,
		NumChains:          numChains,
		HashItemLength:     hashItemLength,
		RingSize:           ringSize,
		ActiveAnchors:      make([][]byte, numChains),
		FirstActiveAnchors: make([][]byte, numChains),
		NextAnchors:        make([][]byte, numChains),
		ActiveRoots:        make([][]byte, numChains),
		NextRoots:          make([][]byte, numChains),
		NextRootLen:        make([]int, numChains),
	}
	if transform.HasTree() {
		sa.TreeDepth = tpahash.Log2Ceil(hashItemLength)
	}
	if transform.HasCumulativeRing() && ringSize > 0 {
		sa.HashBuffer = make([]HashBufferSlot, ringSize)
	}
	return sa
}

// IsNextArmed reports whether chain i has an advertised next anchor
// awaiting transition.
func (sa *SA) IsNextArmed(chain int) bool {
	return !isZero(sa.NextAnchors[chain])
}

func isZero(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// MatchesFirstActive reports whether candidate equals the SA's first-active
// anchor for chain i, the sole comparison basis for UPDATE matching.
func (sa *SA) MatchesFirstActive(chain int, candidate []byte) bool {
	return bytes.Equal(sa.FirstActiveAnchors[chain], candidate)
}

// RemoveState tears down the SA, releasing every cached anchor update and
// owned root. Must be called at most once; partial teardown and further
// packet submission afterward are not supported.
func (sa *SA) RemoveState() {
	sa.ActiveAnchors = nil
	sa.FirstActiveAnchors = nil
	sa.NextAnchors = nil
	sa.ActiveRoots = nil
	sa.NextRoots = nil
	sa.HashBuffer = nil
	sa.AnchorCache = AnchorCache{}
}

// Key identifies one direction of one security association: the pair of
// HITs (initiator, responder) plus which direction's state this is.
type Key struct {
	LocalHIT  [16]byte
	PeerHIT   [16]byte
	Direction Direction
}

// Direction distinguishes the inbound (verifier) and outbound (sender)
// halves of an SA.
type Direction uint8

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// Table maps SA keys to their state, the connection tracker's primary
// index; the anchor cache is per-SA and per-direction.
type Table struct {
	sas map[Key]*SA
}

// NewTable returns an empty SA table.
func NewTable() *Table {
	return &Table{sas: make(map[Key]*SA)}
}

// Install binds sa to key. Installing over an existing key replaces it;
// callers are responsible for calling RemoveState on the prior value
// first if a clean teardown is required.
func (t *Table) Install(key Key, sa *SA) {
	t.sas[key] = sa
}

// Get returns the SA bound to key, or nil if none exists.
func (t *Table) Get(key Key) *SA {
	return t.sas[key]
}

// RemoveState tears down and unbinds the SA at key, a no-op if absent.
func (t *Table) RemoveState(key Key) {
	if sa, ok := t.sas[key]; ok {
		sa.RemoveState()
		delete(t.sas, key)
	}
}
