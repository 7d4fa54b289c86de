// Package storage defines the persistence interface and its implementations.
//
// The store keeps a single row per commit SHA with a status of either
// pending or delivered. Delivered rows are retained indefinitely and act
// as the deduplication record for everything already broadcast.
package storage

import (
	"context"

	"commitbot/internal/model"
)

// Store is the interface for all persistence operations.
//
// Each operation is individually atomic, but no transaction spans
// TakeNextPending, MarkDelivered, and the publish call that follows them:
// a crash or publish failure in between leaves a commit marked delivered
// without it ever reaching the channel. Delivery is at-most-once.
type Store interface {
	// IsDelivered reports whether a commit with this SHA has already
	// been broadcast.
	IsDelivered(ctx context.Context, sha string) (bool, error)

	// UpsertPending inserts or overwrites the pending record for the
	// commit's SHA. It returns true only when a brand-new pending row was
	// created, false for an overwrite. A delivered row is never touched.
	UpsertPending(ctx context.Context, c *model.Commit) (bool, error)

	// TakeNextPending removes and returns the pending commit with the
	// most recent author date, ties broken by insertion order.
	// Returns nil when nothing is pending.
	TakeNextPending(ctx context.Context) (*model.Commit, error)

	// MarkDelivered records the commit as broadcast. Idempotent.
	MarkDelivered(ctx context.Context, c *model.Commit) error

	// CountPending returns the size of the pending backlog.
	CountPending(ctx context.Context) (int, error)

	Close() error
}
