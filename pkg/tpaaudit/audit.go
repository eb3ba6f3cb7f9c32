// Copyright 2025 Certen Protocol
//
// Audit sink for anchor-update activations and rejections, backed by
// Postgres via lib/pq. Useful to an operator auditing which anchor
// rotations an SA actually went through, separately from the hot path's
// own error codes.

package tpaaudit

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/hip-tpa/tpacore/pkg/satable"
)

// Client wraps a connection pool to the audit database.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient opens a connection pool against databaseURL (a postgres://
// DSN) and verifies connectivity before returning.
func NewClient(databaseURL string, opts ...ClientOption) (*Client, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("audit database URL cannot be empty")
	}

	client := &Client{logger: log.New(log.Writer(), "[tpaaudit] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(client)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	client.db = db
	return client, nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Event is one audit record: an anchor-update activation, rejection, or
// verification failure worth keeping a durable trail of.
type Event struct {
	ID         uuid.UUID
	Key        satable.Key
	Chain      int
	UpdateSeq  uint32
	Outcome    string // "activated", "cache_miss", "mismatch", "verify_failed"
	Detail     string
	RecordedAt time.Time
}

// RecordActivation logs a successful UPDATE Msg-2 activation for one SA
// chain.
func (c *Client) RecordActivation(ctx context.Context, key satable.Key, chain int, seq uint32) error {
	return c.record(ctx, Event{
		ID:        uuid.New(),
		Key:       key,
		Chain:     chain,
		UpdateSeq: seq,
		Outcome:   "activated",
	})
}

// RecordRejection logs a rejected UPDATE or light-UPDATE message, keyed
// by the taxonomy outcome string so queries can group by failure mode.
func (c *Client) RecordRejection(ctx context.Context, key satable.Key, chain int, seq uint32, outcome, detail string) error {
	return c.record(ctx, Event{
		ID:        uuid.New(),
		Key:       key,
		Chain:     chain,
		UpdateSeq: seq,
		Outcome:   outcome,
		Detail:    detail,
	})
}

func (c *Client) record(ctx context.Context, ev Event) error {
	ev.RecordedAt = time.Now()

	query := `
		INSERT INTO tpa_audit_events (
			event_id, local_hit, peer_hit, direction, chain_index,
			update_seq, outcome, detail, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := c.db.ExecContext(ctx, query,
		ev.ID, ev.Key.LocalHIT[:], ev.Key.PeerHIT[:], int(ev.Key.Direction), ev.Chain,
		ev.UpdateSeq, ev.Outcome, ev.Detail, ev.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}
