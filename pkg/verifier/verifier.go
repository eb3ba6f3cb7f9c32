// Copyright 2025 Certen Protocol
//
// Per-packet verifier: the hot path. Given a decapsulated ESP datagram
// and its resolved inbound SA, decide which parallel chain the packet
// belongs to, verify its token, and advance SA state on a confirmed
// transition. The SA's anchor slots and ring buffer are pre-sized by the
// negotiated transform; each digest computed while verifying is a fresh
// allocation. Single owner per SA, no internal locking.

package verifier

import (
	"bytes"
	"fmt"

	"github.com/hip-tpa/tpacore/pkg/hashchain"
	"github.com/hip-tpa/tpacore/pkg/satable"
	"github.com/hip-tpa/tpacore/pkg/tpaerr"
	"github.com/hip-tpa/tpacore/pkg/tpahash"
	"github.com/hip-tpa/tpacore/pkg/tpametrics"
	"github.com/hip-tpa/tpacore/pkg/tpawire"
)

// Verifier runs VerifyESP against a single digest mode shared by every SA
// it handles.
type Verifier struct {
	Mode   tpahash.Mode
	Window int

	// Metrics, if set, is fed a chain-walk-depth observation for every
	// packet accepted by a non-TREE chain walk, a cumulative-ring-hit count
	// for every packet accepted from the ring, and an error count on every
	// rejection. Nil is a valid zero value: every call site below checks
	// it first.
	Metrics *tpametrics.Metrics
}

// New returns a Verifier using the given digest mode and anti-replay
// window; every SA this Verifier checks uses that same window.
func New(mode tpahash.Mode, window int) *Verifier {
	return &Verifier{Mode: mode, Window: window}
}

// PacketPayload abstracts the bytes VerifyESP hashes when checking a
// ring-buffer slot (computing H of the whole ESP payload) — the caller
// supplies exactly the bytes it wants covered.
type PacketPayload []byte

// VerifyESP is the per-packet verifier's entry point. view exposes the
// in-packet token and any cumulative items; espSeq is the packet's ESP
// sequence number; payload is the whole ESP payload, used only for the
// cumulative-ring replay check.
func (v *Verifier) VerifyESP(sa *satable.SA, view *tpawire.EspView, espSeq uint32, payload PacketPayload) error {
	if sa.Transform == tpawire.TransformUnused {
		return nil
	}

	chain := int((espSeq - 1)) % sa.NumChains
	if chain < 0 {
		chain += sa.NumChains
	}

	token := view.Token()

	if sa.Transform.HasTree() {
		err := v.verifyTree(sa, chain, token, espSeq)
		v.observeError(err)
		return err
	}

	window := v.Window
	if window <= 0 {
		window = 64
	}

	delta := int64(espSeq) - int64(sa.SeqNo)
	switch {
	case delta > 0 && delta <= int64(window):
		// The walk is bounded by the actual sequence gap, not the configured
		// window, so a packet cannot be accepted further into the chain
		// than the number of sequence numbers it actually advanced.
		result := hashchain.Verify(v.Mode, sa.ActiveAnchors[chain], sa.NextAnchors[chain], token, int(delta), sa.HashItemLength, v.rootCheck(sa, chain))
		if result.Outcome == hashchain.Fail {
			err := tpaerr.VerifyFailed("chain walk exhausted window without reaching active or next anchor")
			v.observeError(err)
			return err
		}
		v.advance(sa, chain, token, result.Outcome)
		sa.SeqNo = espSeq
		if v.Metrics != nil {
			v.Metrics.ChainWalkDepth.Observe(float64(result.Steps))
		}

	case sa.Transform.HasCumulativeRing() && delta < 0:
		if err := v.verifyCumulativeRing(sa, espSeq, payload); err != nil {
			v.observeError(err)
			return err
		}
		// Replay-window acceptance does not advance seq_no or the anchor;
		// it only confirms the packet against a previously cached hash.
		if v.Metrics != nil {
			v.Metrics.CumulativeHits.Inc()
		}

	default:
		err := tpaerr.Replay(espSeq)
		v.observeError(err)
		return err
	}

	if sa.Transform.HasCumulativeRing() && sa.CumulativeItemCount > 0 {
		items, err := view.CumulativeItems(sa.CumulativeItemCount)
		if err != nil {
			wrapped := tpaerr.Malformed(fmt.Sprintf("cumulative items: %v", err))
			v.observeError(wrapped)
			return wrapped
		}
		InstallCumulativeItems(sa, items)
	}

	return nil
}

// observeError feeds err into v.Metrics' error-taxonomy counter; a no-op
// when no Metrics collector is attached or err is nil.
func (v *Verifier) observeError(err error) {
	if v.Metrics != nil {
		v.Metrics.ObserveError(err)
	}
}

func (v *Verifier) rootCheck(sa *satable.SA, chain int) hashchain.RootVerifier {
	if len(sa.ActiveRoots[chain]) == 0 {
		return nil
	}
	return func(hop []byte) bool {
		// The chain's terminal hop must itself be a leaf of the active
		// root's tree at the anchor's own reserved index 0; callers that
		// negotiate a root alongside a chain anchor use branch index 0 by
		// convention (no cumulative items precede the anchor leaf).
		return bytes.Equal(hop, sa.ActiveRoots[chain])
	}
}

// verifyTree implements the TREE transform's per-packet check: the same
// bounded hash-chain walk as the non-TREE branch, but against the SA's
// active/next Merkle roots instead of its active/next anchors — the root
// and next-root replace the anchor on a confirmed transition.
func (v *Verifier) verifyTree(sa *satable.SA, chain int, token []byte, espSeq uint32) error {
	window := v.Window
	if window <= 0 {
		window = 64
	}

	result := hashchain.Verify(v.Mode, sa.ActiveRoots[chain], sa.NextRoots[chain], token, window, sa.HashItemLength, nil)
	if result.Outcome == hashchain.Fail {
		return tpaerr.VerifyFailed("token did not verify against active or next tree root")
	}

	sa.ActiveAnchors[chain] = token
	if result.Outcome == hashchain.Transition {
		sa.FirstActiveAnchors[chain] = token
		sa.ActiveRoots[chain] = sa.NextRoots[chain]
		sa.NextRoots[chain] = nil
	}
	sa.SeqNo = espSeq
	return nil
}

// advance applies the non-TREE transition: the just-verified token
// becomes the new active anchor; on transition, next becomes the new
// first-active and the next root (if any) is taken over.
func (v *Verifier) advance(sa *satable.SA, chain int, token []byte, outcome hashchain.Outcome) {
	sa.ActiveAnchors[chain] = token
	if outcome == hashchain.Transition {
		sa.FirstActiveAnchors[chain] = sa.NextAnchors[chain]
		sa.NextAnchors[chain] = nil
		sa.ActiveRoots[chain] = sa.NextRoots[chain]
		sa.NextRoots[chain] = nil
	}
}

// verifyCumulativeRing handles an older, out-of-order packet within the
// ring: it is accepted only if the slot's cached sequence number matches
// exactly and its cached hash matches the recomputed payload hash.
func (v *Verifier) verifyCumulativeRing(sa *satable.SA, espSeq uint32, payload PacketPayload) error {
	if len(sa.HashBuffer) == 0 {
		return tpaerr.Replay(espSeq)
	}
	slot := sa.HashBuffer[int(espSeq)%len(sa.HashBuffer)]
	if slot.Seq != espSeq {
		return tpaerr.Replay(espSeq)
	}
	computed := tpahash.Digest(v.Mode, payload, sa.HashItemLength)
	if !bytes.Equal(computed, slot.PacketHash) {
		return tpaerr.Replay(espSeq)
	}
	return nil
}

// InstallCumulativeItems applies the "freshest wins per ring slot" rule to
// an already-parsed list of cumulative items. VerifyESP calls this itself
// after every accepted CUMULATIVE/PARA_CUMUL packet; it is exported so a
// caller replaying a cumulative block out of band (e.g. from a control
// message) can apply the same rule directly.
func InstallCumulativeItems(sa *satable.SA, items []tpawire.CumulativeItem) {
	if len(sa.HashBuffer) == 0 {
		return
	}
	ring := len(sa.HashBuffer)
	for _, item := range items {
		slot := int(item.Seq) % ring
		if item.Seq > sa.HashBuffer[slot].Seq {
			sa.HashBuffer[slot] = satable.HashBufferSlot{Seq: item.Seq, PacketHash: item.PacketHash}
		}
	}
}
