// Package ingest polls the search source and feeds new commits into the
// pending queue.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"commitbot/internal/model"
	"commitbot/internal/source"
	"commitbot/internal/storage"
)

// keywordWindow bounds how far into a commit message the keyword policy
// looks. Search backends match loosely (code, paths); the policy narrows
// that back to a literal occurrence near the top of the message.
const keywordWindow = 255

// Ingestor discovers the newest matching commit and queues it once.
type Ingestor struct {
	src            source.Source
	store          storage.Store
	keyword        string
	requireKeyword bool
	log            *slog.Logger
}

// New creates an Ingestor. When requireKeyword is set, results whose message
// does not literally contain the keyword within its first 255 characters are
// dropped.
func New(src source.Source, store storage.Store, keyword string, requireKeyword bool, log *slog.Logger) *Ingestor {
	return &Ingestor{
		src:            src,
		store:          store,
		keyword:        keyword,
		requireKeyword: requireKeyword,
		log:            log,
	}
}

// Run performs one ingestion tick. It returns the commit when a new pending
// record was created and nil otherwise (no match, already delivered, already
// pending, or rejected by the keyword policy). Source failures propagate to
// the caller; the next tick starts fresh.
func (i *Ingestor) Run(ctx context.Context) (*model.Commit, error) {
	c, err := i.src.LatestMatch(ctx, i.keyword, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("search source: %w", err)
	}
	if c == nil {
		return nil, nil
	}

	if err := validate(c); err != nil {
		return nil, err
	}

	if i.requireKeyword && !keywordInMessage(i.keyword, c.Message) {
		i.log.Debug("keyword not in message, skipping", "sha", c.SHA)
		return nil, nil
	}

	delivered, err := i.store.IsDelivered(ctx, c.SHA)
	if err != nil {
		return nil, fmt.Errorf("check delivered: %w", err)
	}
	if delivered {
		return nil, nil
	}

	created, err := i.store.UpsertPending(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("queue commit: %w", err)
	}
	if !created {
		return nil, nil
	}

	i.log.Info("queued commit", "sha", c.SHA, "author", c.Author, "date", c.AuthorDate)
	return c, nil
}

// validate rejects search results missing required fields. These indicate a
// broken source contract, not a transient condition.
func validate(c *model.Commit) error {
	switch {
	case c.SHA == "":
		return fmt.Errorf("malformed search result: missing sha")
	case c.URL == "":
		return fmt.Errorf("malformed search result %s: missing url", c.SHA)
	case c.Message == "":
		return fmt.Errorf("malformed search result %s: missing message", c.SHA)
	case c.AuthorDate.IsZero():
		return fmt.Errorf("malformed search result %s: missing author date", c.SHA)
	}
	return nil
}

func keywordInMessage(keyword, message string) bool {
	head := []rune(message)
	if len(head) > keywordWindow {
		head = head[:keywordWindow]
	}
	return strings.Contains(strings.ToLower(string(head)), strings.ToLower(keyword))
}
