// Copyright 2025 Certen Protocol

package satable

import (
	"bytes"
	"testing"

	"github.com/hip-tpa/tpacore/pkg/tpawire"
)

func TestNewSizesBuffers(t *testing.T) {
	sa := New(tpawire.TransformParallel, 2, 20, 0)
	if len(sa.ActiveAnchors) != 2 || len(sa.NextAnchors) != 2 {
		t.Fatalf("expected 2 chains worth of anchors, got %d/%d", len(sa.ActiveAnchors), len(sa.NextAnchors))
	}
}

func TestNewTreeComputesDepth(t *testing.T) {
	sa := New(tpawire.TransformTree, 1, 9, 0)
	if sa.TreeDepth != 4 {
		t.Errorf("TreeDepth = %d, want 4 (ceil(log2(9)))", sa.TreeDepth)
	}
}

func TestNewCumulativeAllocatesRing(t *testing.T) {
	sa := New(tpawire.TransformCumulative, 1, 20, 64)
	if len(sa.HashBuffer) != 64 {
		t.Fatalf("HashBuffer length = %d, want 64", len(sa.HashBuffer))
	}
}

func TestIsNextArmed(t *testing.T) {
	sa := New(tpawire.TransformPlain, 1, 20, 0)
	sa.NextAnchors[0] = make([]byte, 20) // all-zero
	if sa.IsNextArmed(0) {
		t.Errorf("all-zero next anchor should not be armed")
	}
	sa.NextAnchors[0][0] = 1
	if !sa.IsNextArmed(0) {
		t.Errorf("non-zero next anchor should be armed")
	}
}

func TestMatchesFirstActive(t *testing.T) {
	sa := New(tpawire.TransformPlain, 1, 20, 0)
	anchor := bytes.Repeat([]byte{0x42}, 20)
	sa.FirstActiveAnchors[0] = anchor
	if !sa.MatchesFirstActive(0, anchor) {
		t.Errorf("expected a match against the first-active anchor")
	}
	if sa.MatchesFirstActive(0, bytes.Repeat([]byte{0x43}, 20)) {
		t.Errorf("expected no match for a different anchor")
	}
}

func TestAnchorCacheNewestFirst(t *testing.T) {
	var cache AnchorCache
	cache.Insert(&PendingAnchorUpdate{Seq: 1})
	cache.Insert(&PendingAnchorUpdate{Seq: 2})
	cache.Insert(&PendingAnchorUpdate{Seq: 3})

	if cache.Len() != 3 {
		t.Fatalf("cache length = %d, want 3", cache.Len())
	}
	if got := cache.Find(3); got == nil || got.Seq != 3 {
		t.Errorf("expected to find seq 3")
	}
	if cache.entries[0].Seq != 3 || cache.entries[2].Seq != 1 {
		t.Errorf("cache order = %d..%d, want newest (3) first and oldest (1) last", cache.entries[0].Seq, cache.entries[2].Seq)
	}

	cache.Remove(2)
	if cache.Len() != 2 {
		t.Fatalf("cache length after removal = %d, want 2", cache.Len())
	}
	if cache.Find(2) != nil {
		t.Errorf("seq 2 should have been removed")
	}
}

func TestRemoveStateClearsEverything(t *testing.T) {
	sa := New(tpawire.TransformCumulative, 1, 20, 8)
	sa.AnchorCache.Insert(&PendingAnchorUpdate{Seq: 1})
	sa.RemoveState()

	if sa.ActiveAnchors != nil || sa.HashBuffer != nil || sa.AnchorCache.Len() != 0 {
		t.Errorf("RemoveState left state behind")
	}
}

func TestTableInstallGetRemove(t *testing.T) {
	table := NewTable()
	key := Key{Direction: DirectionInbound}
	sa := New(tpawire.TransformPlain, 1, 20, 0)

	table.Install(key, sa)
	if table.Get(key) != sa {
		t.Fatalf("Get did not return the installed SA")
	}

	table.RemoveState(key)
	if table.Get(key) != nil {
		t.Errorf("expected nil after RemoveState")
	}
}
