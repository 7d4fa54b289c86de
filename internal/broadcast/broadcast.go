// Package broadcast takes one pending commit per tick, formats it, and
// publishes it.
//
// Delivery is at-most-once: the commit is marked delivered before the
// publish call, so a publish failure leaves it delivered without it ever
// reaching the channel. That window is deliberate and matches the store's
// documented contract; nothing rolls back or retries.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"commitbot/internal/publisher"
	"commitbot/internal/source"
	"commitbot/internal/storage"
)

// Broadcaster emits one pending commit per tick.
type Broadcaster struct {
	store storage.Store
	src   source.Source
	pub   publisher.Publisher
	log   *slog.Logger
}

// New creates a Broadcaster.
func New(store storage.Store, src source.Source, pub publisher.Publisher, log *slog.Logger) *Broadcaster {
	return &Broadcaster{store: store, src: src, pub: pub, log: log}
}

// Run performs one broadcast tick: take the most recent pending commit,
// mark it delivered, resolve the optional author handle, format, publish.
// An empty queue is a no-op.
func (b *Broadcaster) Run(ctx context.Context) error {
	c, err := b.store.TakeNextPending(ctx)
	if err != nil {
		return fmt.Errorf("take pending: %w", err)
	}
	if c == nil {
		b.log.Debug("nothing pending")
		return nil
	}

	if err := b.store.MarkDelivered(ctx, c); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	var handle string
	if c.Author != "" {
		h, err := b.src.AuthorHandle(ctx, c.Author)
		if err != nil {
			// Enrichment is best-effort; the message goes out without it.
			b.log.Warn("resolve author handle", "author", c.Author, "error", err)
		} else {
			handle = h
		}
	}

	msg := Format(c, handle)
	if err := b.pub.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish commit %s: %w", c.SHA, err)
	}

	b.log.Info("broadcast commit", "sha", c.SHA, "author", c.Author, "len", len(msg))
	return nil
}
