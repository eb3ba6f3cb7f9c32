// Copyright 2025 Certen Protocol
//
// Connection tracker: maps observed HIP control messages onto per-SA
// anchor state. Handles R1 transform advertisement, I2/R2 initial anchor
// installation, and standard and light UPDATE caching/activation.

package tracker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hip-tpa/tpacore/pkg/hashtree"
	"github.com/hip-tpa/tpacore/pkg/satable"
	"github.com/hip-tpa/tpacore/pkg/tpaaudit"
	"github.com/hip-tpa/tpacore/pkg/tpaerr"
	"github.com/hip-tpa/tpacore/pkg/tpahash"
	"github.com/hip-tpa/tpacore/pkg/tpametrics"
	"github.com/hip-tpa/tpacore/pkg/tpastore"
	"github.com/hip-tpa/tpacore/pkg/tpawire"
)

// auditTimeout bounds how long a best-effort audit write may hold up a
// control-message handler.
const auditTimeout = 2 * time.Second

// Tracker owns the SA table for a set of HIP security associations and
// applies every control-message handler a HIP session needs. It carries no
// goroutine of its own: every method runs to completion before returning,
// matching the single-threaded cooperative scheduling model.
type Tracker struct {
	Mode    tpahash.Mode
	logger  *log.Logger
	table   *satable.Table
	store   *tpastore.Store
	audit   *tpaaudit.Client
	metrics *tpametrics.Metrics

	// CumulItemCount is k = num_linear + num_random from the negotiated
	// token_modes, applied to every SA this tracker installs; only
	// meaningful for CUMULATIVE/PARA_CUMUL transforms.
	CumulItemCount int

	// preferred is the normalized R1 preferred-transforms list cached per
	// key, so I2/R2 installation can check the chosen transform was
	// actually advertised.
	preferred map[satable.Key][]tpawire.TransformID
}

// Option configures a Tracker at construction, matching the functional
// options tpaaudit.ClientOption uses.
type Option func(*Tracker)

// WithLogger overrides the default logger a Tracker uses for its one-drop
// logging of Malformed control messages.
func WithLogger(logger *log.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithCumulItemCount sets k = num_linear + num_random for every SA this
// tracker installs, so CUMULATIVE/PARA_CUMUL SAs know how many trailing
// cumulative items the verifier should parse per packet.
func WithCumulItemCount(k int) Option {
	return func(t *Tracker) { t.CumulItemCount = k }
}

// WithStore attaches a durable SA store: every successful base-exchange
// install, UPDATE activation and accepted light-UPDATE Msg-1 saves the SA's
// anchor state under it (the anchor cache itself is not stored), and Get falls
// back to it on a cold lookup, so a tracker restart does not force every
// SA back through its base exchange.
func WithStore(store *tpastore.Store) Option {
	return func(t *Tracker) { t.store = store }
}

// WithAudit attaches an audit sink: every UPDATE/light-UPDATE activation,
// and every cache-miss, per-chain mismatch (Msg-2) or branch-verification
// rejection, is recorded against it, best-effort.
func WithAudit(client *tpaaudit.Client) Option {
	return func(t *Tracker) { t.audit = client }
}

// WithMetrics attaches a Prometheus collector: every activated anchor bumps
// AnchorActivations, the same counter the verifier's Metrics field would
// share if the two were pointed at the same collector.
func WithMetrics(metrics *tpametrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = metrics }
}

// New returns an empty tracker using the given digest mode for every SA
// it manages.
func New(mode tpahash.Mode, opts ...Option) *Tracker {
	t := &Tracker{
		Mode:      mode,
		logger:    log.New(log.Writer(), "[tracker] ", log.LstdFlags),
		table:     satable.NewTable(),
		preferred: make(map[satable.Key][]tpawire.TransformID),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// logDrop logs a single dropped control message, tagged with a correlation
// id so an operator can line up this log line with an audit event recorded
// by tpaaudit for the same message. The hot path (verifier.VerifyESP) never
// logs; only the tracker's control-message handlers do.
func (t *Tracker) logDrop(reason string, err error) {
	t.logger.Printf("correlation_id=%s drop: %s: %v", uuid.New(), reason, err)
}

// persist saves sa's current anchor state to the optional store. Errors
// are swallowed: a storage hiccup must not change whether a control
// message already accepted stays accepted. Persistence only happens here,
// at control-message granularity, never from the per-packet hot path.
func (t *Tracker) persist(key satable.Key, sa *satable.SA) {
	if t.store == nil {
		return
	}
	_ = t.store.Save(key, sa)
}

// recordActivation best-effort records a successful anchor activation
// against the optional audit sink.
func (t *Tracker) recordActivation(key satable.Key, chain int, seq uint32) {
	if t.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	_ = t.audit.RecordActivation(ctx, key, chain, seq)
}

// recordRejection best-effort records a rejected UPDATE or light-UPDATE
// message against the optional audit sink. chain is -1 when the rejection
// is not specific to one chain (e.g. a cache miss).
func (t *Tracker) recordRejection(key satable.Key, chain int, seq uint32, outcome, detail string) {
	if t.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	_ = t.audit.RecordRejection(ctx, key, chain, seq, outcome, detail)
}

// HandleR1 records the peer's advertised preferred-transforms list,
// normalized against the local transform-capability table.
func (t *Tracker) HandleR1(key satable.Key, advertised []tpawire.TransformID) {
	t.preferred[key] = tpawire.NormalizePreferred(advertised)
}

// transformAdvertised reports whether t appears in the R1-advertised
// preferred-transforms list cached for this key.
func transformAdvertised(advertised []tpawire.TransformID, t tpawire.TransformID) bool {
	for _, a := range advertised {
		if a == t {
			return true
		}
	}
	return false
}

// InstallBaseExchange handles I2/R2 initial anchor
// installation. isInitial must be true for I2 (the SA must not already
// exist) and false for R2 (an SA installed by a prior I2 must exist).
// anchors holds one ANCHOR parameter per parallel chain, in order, all
// sharing the same transform.
func (t *Tracker) InstallBaseExchange(key satable.Key, isInitial bool, anchors []*tpawire.AnchorParam, ringSize int) (*satable.SA, error) {
	if len(anchors) == 0 {
		err := tpaerr.Malformed("base exchange carried no ANCHOR parameters")
		t.logDrop("base exchange", err)
		return nil, err
	}

	transform := anchors[0].Transform
	if advertised := t.preferred[key]; len(advertised) > 0 && !transformAdvertised(advertised, transform) {
		return nil, tpaerr.Mismatch("advertised transform set", transform)
	}
	if !transform.IsSupported() {
		return nil, tpaerr.Unsupported(transform)
	}
	for _, a := range anchors[1:] {
		if a.Transform != transform {
			return nil, tpaerr.Mismatch(transform, a.Transform)
		}
	}

	existing := t.Get(key)
	if isInitial {
		if existing != nil {
			return nil, tpaerr.Mismatch("no existing SA", "SA already installed")
		}
	} else {
		if existing == nil {
			return nil, tpaerr.Mismatch("pre-existing SA from I2", "no SA found")
		}
	}

	hashItemLength := int(anchors[0].HashItemLength)
	if transform.HasTree() {
		depth := tpahash.Log2Ceil(hashItemLength)
		hashItemLength = tpahash.Pow2(depth)
	}

	sa := satable.New(transform, len(anchors), hashItemLength, ringSize)
	sa.CumulativeItemCount = t.CumulItemCount
	for i, a := range anchors {
		sa.ActiveAnchors[i] = append([]byte(nil), a.Active...)
		sa.FirstActiveAnchors[i] = append([]byte(nil), a.Active...)
	}

	t.table.Install(key, sa)
	t.persist(key, sa)
	return sa, nil
}

// HandleUpdateMsg1 handles the standard UPDATE's Msg-1: cache a
// pending anchor update keyed by seq, matched against first_active_anchors
// of chain 0. The ANCHOR count must equal the SA's installed chain count.
func (t *Tracker) HandleUpdateMsg1(key satable.Key, seq uint32, anchors []*tpawire.AnchorParam, roots []*tpawire.RootParam) error {
	sa := t.Get(key)
	if sa == nil {
		return tpaerr.Mismatch("existing SA", "no SA found")
	}
	if len(anchors) == 0 {
		err := tpaerr.Malformed("UPDATE Msg-1 carried no ANCHOR parameters")
		t.logDrop("UPDATE Msg-1", err)
		return err
	}
	if len(anchors) != sa.NumChains {
		return tpaerr.Mismatch(sa.NumChains, len(anchors))
	}
	if !sa.MatchesFirstActive(0, anchors[0].Active) {
		return tpaerr.Mismatch(sa.FirstActiveAnchors[0], anchors[0].Active)
	}

	entry := &satable.PendingAnchorUpdate{
		Seq:            seq,
		Transform:      anchors[0].Transform,
		HashItemLength: int(anchors[0].HashItemLength),
		Active:         make([][]byte, len(anchors)),
		Next:           make([][]byte, len(anchors)),
	}
	for i, a := range anchors {
		entry.Active[i] = append([]byte(nil), a.Active...)
		entry.Next[i] = append([]byte(nil), a.Next...)
	}
	if len(roots) > 0 {
		entry.RootLength = roots[0].RootLength
		entry.Roots = make([][]byte, len(roots))
		for i, r := range roots {
			entry.Roots[i] = append([]byte(nil), r.Root...)
		}
	}

	sa.AnchorCache.Insert(entry)
	return nil
}

// HandleUpdateMsg2 handles the standard UPDATE's Msg-2: locate the
// cache entry matching ack, activate next_anchors/next_roots for every
// chain whose cached active anchor still matches first_active_anchors,
// and remove the entry. All-or-nothing: either every matching chain
// activates or the entry is rejected.
func (t *Tracker) HandleUpdateMsg2(key satable.Key, ack uint32) error {
	sa := t.Get(key)
	if sa == nil {
		return tpaerr.Mismatch("existing SA", "no SA found")
	}
	entry := sa.AnchorCache.Find(ack)
	if entry == nil {
		t.recordRejection(key, -1, ack, "cache_miss", "")
		return tpaerr.CacheMiss(ack)
	}

	for i := range entry.Active {
		if i >= sa.NumChains {
			break
		}
		if !sa.MatchesFirstActive(i, entry.Active[i]) {
			err := tpaerr.Mismatch(sa.FirstActiveAnchors[i], entry.Active[i])
			t.recordRejection(key, i, ack, "mismatch", err.Error())
			return err
		}
	}

	for i := range entry.Active {
		if i >= sa.NumChains {
			break
		}
		sa.NextAnchors[i] = entry.Next[i]
		if entry.Roots != nil && i < len(entry.Roots) {
			sa.NextRoots[i] = entry.Roots[i]
			sa.NextRootLen[i] = entry.RootLength
		}
		t.recordActivation(key, i, ack)
		if t.metrics != nil {
			t.metrics.AnchorActivations.Inc()
		}
	}

	sa.AnchorCache.Remove(ack)
	t.persist(key, sa)
	return nil
}

// HandleUpdateMsg3 handles the mutual UPDATE's Msg-3: explicitly
// unimplemented, no state change, distinct error code.
func (t *Tracker) HandleUpdateMsg3(key satable.Key) error {
	return tpaerr.NotImplemented("mutual/location UPDATE (Msg-3) is not implemented")
}

// HandleLightUpdateMsg1 handles the HHL light-UPDATE's Msg-1: the
// peer proves each new anchor with a Merkle branch against the SA's
// active root instead of a signature. seq.update_id must strictly exceed
// SA.lupdate_seq; every branch must verify or the whole message is
// rejected (no partial caching).
func (t *Tracker) HandleLightUpdateMsg1(key satable.Key, seq uint32, anchors []*tpawire.AnchorParam, branches []*tpawire.BranchParam, secrets []*tpawire.SecretParam, roots []*tpawire.RootParam) error {
	sa := t.Get(key)
	if sa == nil {
		return tpaerr.Mismatch("existing SA", "no SA found")
	}
	if seq <= sa.LUpdateSeq {
		return tpaerr.Replay(seq)
	}
	if len(anchors) != len(branches) || len(anchors) != len(secrets) {
		err := tpaerr.Malformed("light UPDATE ANCHOR/BRANCH/SECRET counts do not match")
		t.logDrop("light UPDATE Msg-1", err)
		return err
	}

	if len(anchors) != sa.NumChains {
		return tpaerr.Mismatch(sa.NumChains, len(anchors))
	}

	for i, a := range anchors {
		root := sa.ActiveRoots[i]
		ok := len(root) > 0 && hashtree.VerifyBranch(t.Mode, root, branches[i].Siblings, a.Next, secrets[i].Secret, branches[i].AnchorOffset, len(root))
		if !ok {
			err := tpaerr.VerifyFailed("light UPDATE branch did not recompute active root")
			t.recordRejection(key, i, seq, "verify_failed", err.Error())
			return err
		}
	}

	entry := &satable.PendingAnchorUpdate{
		Seq:            seq,
		Transform:      anchors[0].Transform,
		HashItemLength: int(anchors[0].HashItemLength),
		Active:         make([][]byte, len(anchors)),
		Next:           make([][]byte, len(anchors)),
	}
	for i, a := range anchors {
		entry.Active[i] = append([]byte(nil), a.Active...)
		entry.Next[i] = append([]byte(nil), a.Next...)
	}
	if len(roots) > 0 {
		entry.RootLength = roots[0].RootLength
		entry.Roots = make([][]byte, len(roots))
		for i, r := range roots {
			entry.Roots[i] = append([]byte(nil), r.Root...)
		}
	}

	sa.AnchorCache.Insert(entry)
	sa.LUpdateSeq = seq
	t.persist(key, sa)
	return nil
}

// HandleLightUpdateMsg2 activates a light UPDATE exactly as
// HandleUpdateMsg2 does: the ACK message format is identical for both
// styles.
func (t *Tracker) HandleLightUpdateMsg2(key satable.Key, ack uint32) error {
	return t.HandleUpdateMsg2(key, ack)
}

// RemoveState tears down the SA bound to key, including its persisted copy
// if a store is attached. Callers must invoke this exactly once and must
// not submit further packets for key afterward.
func (t *Tracker) RemoveState(key satable.Key) {
	t.table.RemoveState(key)
	delete(t.preferred, key)
	if t.store != nil {
		_ = t.store.Delete(key)
	}
}

// Get returns the SA bound to key, checking the in-memory table first and
// falling back to the optional store on a miss so a freshly restarted
// tracker can pick up state installed before it last stopped.
func (t *Tracker) Get(key satable.Key) *satable.SA {
	if sa := t.table.Get(key); sa != nil {
		return sa
	}
	if t.store == nil {
		return nil
	}
	sa, err := t.store.Load(key)
	if err != nil || sa == nil {
		return nil
	}
	t.table.Install(key, sa)
	return sa
}
