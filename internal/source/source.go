// Package source defines the interface for commit discovery backends.
package source

import (
	"context"
	"time"

	"commitbot/internal/model"
)

// Source finds commits matching a keyword and resolves author enrichment.
type Source interface {
	// LatestMatch returns the single newest commit matching keyword whose
	// author date is strictly before the given bound, or nil when nothing
	// matches.
	LatestMatch(ctx context.Context, keyword string, before time.Time) (*model.Commit, error)

	// AuthorHandle resolves an optional secondary handle for a commit
	// author. Returns "" when the backend has none.
	AuthorHandle(ctx context.Context, login string) (string, error)
}
