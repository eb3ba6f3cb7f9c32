// Copyright 2025 Certen Protocol
//
// Persistence for per-SA anchor state, so a tracker restart does not
// force every SA to re-run its base exchange: byte keys built with
// encoding/binary, JSON-marshaled records, single-writer-thread
// concurrency assumed.

package tpastore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/hip-tpa/tpacore/pkg/satable"
	"github.com/hip-tpa/tpacore/pkg/tpaerr"
	"github.com/hip-tpa/tpacore/pkg/tpawire"
)

// KV is the minimal key-value interface Store needs; satisfied directly
// by a *KVAdapter wrapping a cometbft-db database.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// KVAdapter wraps a cometbft-db dbm.DB and exposes the KV interface this
// package consumes.
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter wraps db for use as a Store's KV.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// Get implements KV.Get.
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set implements KV.Set, using SetSync for durability across restarts.
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Delete implements KV.Delete, using DeleteSync for durability across
// restarts.
func (a *KVAdapter) Delete(key []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.DeleteSync(key)
}

// Store persists SA anchor state. CONCURRENCY: this assumes single-writer
// access from the same thread that owns the Tracker; callers needing
// concurrent access must add their own synchronization.
type Store struct {
	kv KV
}

// New wraps kv as a Store.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

var keySAPrefix = []byte("tpasa:")

// saRecord is the JSON-serializable mirror of satable.SA persisted to the
// KV store; unexported fields of SA (none currently) would need explicit
// accessors added here.
type saRecord struct {
	Transform          tpawire.TransformID `json:"transform"`
	NumChains          int                 `json:"num_chains"`
	HashItemLength     int                 `json:"hash_item_length"`
	TreeDepth          int                 `json:"tree_depth"`
	RingSize           int                 `json:"ring_size"`
	ActiveAnchors      [][]byte            `json:"active_anchors"`
	FirstActiveAnchors [][]byte            `json:"first_active_anchors"`
	NextAnchors        [][]byte            `json:"next_anchors"`
	ActiveRoots        [][]byte            `json:"active_roots"`
	NextRoots          [][]byte            `json:"next_roots"`
	SeqNo              uint32              `json:"seq_no"`
	LUpdateSeq         uint32              `json:"lupdate_seq"`
}

func saKey(key satable.Key) []byte {
	out := append([]byte(nil), keySAPrefix...)
	out = append(out, key.LocalHIT[:]...)
	out = append(out, key.PeerHIT[:]...)
	var dirBuf [4]byte
	binary.BigEndian.PutUint32(dirBuf[:], uint32(key.Direction))
	return append(out, dirBuf[:]...)
}

// Save persists sa's current anchor state under key. The hash buffer and
// anchor cache are intentionally not persisted: teardown frees every
// cached anchor, and a restart is allowed to start the replay window
// fresh rather than reconstruct an in-flight UPDATE handshake.
func (s *Store) Save(key satable.Key, sa *satable.SA) error {
	rec := saRecord{
		Transform:          sa.Transform,
		NumChains:          sa.NumChains,
		HashItemLength:     sa.HashItemLength,
		TreeDepth:          sa.TreeDepth,
		RingSize:           sa.RingSize,
		ActiveAnchors:      sa.ActiveAnchors,
		FirstActiveAnchors: sa.FirstActiveAnchors,
		NextAnchors:        sa.NextAnchors,
		ActiveRoots:        sa.ActiveRoots,
		NextRoots:          sa.NextRoots,
		SeqNo:              sa.SeqNo,
		LUpdateSeq:         sa.LUpdateSeq,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return tpaerr.Malformed(fmt.Sprintf("marshal SA record: %v", err))
	}
	return s.kv.Set(saKey(key), data)
}

// Load reconstructs an SA previously saved under key, or returns nil,nil
// if none is present.
func (s *Store) Load(key satable.Key) (*satable.SA, error) {
	data, err := s.kv.Get(saKey(key))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var rec saRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, tpaerr.Malformed(fmt.Sprintf("unmarshal SA record: %v", err))
	}

	sa := satable.New(rec.Transform, rec.NumChains, rec.HashItemLength, rec.RingSize)
	sa.TreeDepth = rec.TreeDepth
	sa.ActiveAnchors = rec.ActiveAnchors
	sa.FirstActiveAnchors = rec.FirstActiveAnchors
	sa.NextAnchors = rec.NextAnchors
	sa.ActiveRoots = rec.ActiveRoots
	sa.NextRoots = rec.NextRoots
	sa.SeqNo = rec.SeqNo
	sa.LUpdateSeq = rec.LUpdateSeq
	return sa, nil
}

// Delete removes the persisted SA state for key, mirroring RemoveState's
// exactly-once teardown contract.
func (s *Store) Delete(key satable.Key) error {
	return s.kv.Delete(saKey(key))
}
