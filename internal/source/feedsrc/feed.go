// Package feedsrc implements commit discovery over a commit Atom/RSS feed,
// for deployments without a search API token. GitHub publishes such feeds at
// <repo>/commits.atom; any feed whose entries describe commits works.
package feedsrc

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"commitbot/internal/model"
)

const maxFeedBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Feed discovers commits by polling a single feed URL.
type Feed struct {
	client  HTTPClient
	feedURL string
}

// New creates a Feed source for the given URL.
func New(client HTTPClient, feedURL string) *Feed {
	return &Feed{client: client, feedURL: feedURL}
}

// LatestMatch fetches the feed and returns the newest entry whose title
// contains keyword (case-insensitively) and whose date is strictly before
// the given bound. Returns nil when no entry qualifies.
func (f *Feed) LatestMatch(ctx context.Context, keyword string, before time.Time) (*model.Commit, error) {
	feed, err := f.fetch(ctx)
	if err != nil {
		return nil, err
	}

	kw := strings.ToLower(keyword)

	var best *model.Commit
	for _, item := range feed.Items {
		date := itemDate(item)
		if date == nil || !date.Before(before) {
			continue
		}
		if !strings.Contains(strings.ToLower(item.Title), kw) {
			continue
		}
		if best != nil && !date.After(best.AuthorDate) {
			continue
		}

		c := &model.Commit{
			SHA:        itemGUID(item),
			URL:        item.Link,
			Message:    item.Title,
			AuthorDate: date.UTC(),
		}
		if item.Author != nil {
			c.Author = item.Author.Name
		}
		best = c
	}
	return best, nil
}

// AuthorHandle is a no-op: feeds carry no secondary author identity.
func (f *Feed) AuthorHandle(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (f *Feed) fetch(ctx context.Context) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "commitbot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func itemDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

// itemGUID returns the identity for a feed entry. Entries without a GUID
// fall back to a SHA-256 hash of title+link.
func itemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}
