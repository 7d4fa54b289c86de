package storage

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"commitbot/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCommit(sha string, date time.Time) *model.Commit {
	return &model.Commit{
		SHA:        sha,
		URL:        "https://example.com/commit/" + sha,
		Author:     "alice",
		Message:    "fix bug in " + sha,
		AuthorDate: date,
	}
}

func TestUpsertPending(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := testCommit("abc123", date)

	created, err := s.UpsertPending(ctx, c)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Error("expected created=true for new commit")
	}

	// Re-ingesting the same SHA overwrites fields but does not duplicate.
	updated := testCommit("abc123", date)
	updated.Message = "fix bug, take two"
	created, err = s.UpsertPending(ctx, updated)
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if created {
		t.Error("expected created=false for overwrite")
	}

	got, err := s.TakeNextPending(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if diff := cmp.Diff(updated, got); diff != "" {
		t.Errorf("commit mismatch (-want +got):\n%s", diff)
	}

	count, err := s.CountPending(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty queue after take, got %d", count)
	}
}

func TestUpsertPendingSkipsDelivered(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	c := testCommit("abc123", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if err := s.MarkDelivered(ctx, c); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	created, err := s.UpsertPending(ctx, c)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created {
		t.Error("expected created=false for delivered commit")
	}

	got, err := s.TakeNextPending(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got != nil {
		t.Errorf("delivered commit re-entered the queue: %+v", got)
	}

	delivered, err := s.IsDelivered(ctx, c.SHA)
	if err != nil {
		t.Fatalf("is delivered: %v", err)
	}
	if !delivered {
		t.Error("expected commit to stay delivered")
	}
}

func TestTakeNextPendingOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose: selection must follow the author
	// date, newest first, not insertion order.
	for _, c := range []*model.Commit{
		testCommit("t2", base.Add(1*time.Hour)),
		testCommit("t3", base.Add(2*time.Hour)),
		testCommit("t1", base),
	} {
		if _, err := s.UpsertPending(ctx, c); err != nil {
			t.Fatalf("upsert %s: %v", c.SHA, err)
		}
	}

	var gotOrder []string
	for {
		c, err := s.TakeNextPending(ctx)
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		if c == nil {
			break
		}
		gotOrder = append(gotOrder, c.SHA)
	}

	want := []string{"t3", "t2", "t1"}
	if diff := cmp.Diff(want, gotOrder); diff != "" {
		t.Errorf("take order mismatch (-want +got):\n%s", diff)
	}
}

func TestTakeNextPendingTieBreak(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, sha := range []string{"first", "second", "third"} {
		if _, err := s.UpsertPending(ctx, testCommit(sha, date)); err != nil {
			t.Fatalf("upsert %s: %v", sha, err)
		}
	}

	// Equal dates fall back to insertion order.
	var gotOrder []string
	for {
		c, err := s.TakeNextPending(ctx)
		if err != nil {
			t.Fatalf("take: %v", err)
		}
		if c == nil {
			break
		}
		gotOrder = append(gotOrder, c.SHA)
	}

	want := []string{"first", "second", "third"}
	if diff := cmp.Diff(want, gotOrder); diff != "" {
		t.Errorf("tie-break order mismatch (-want +got):\n%s", diff)
	}
}

func TestTakeNextPendingEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	c, err := s.TakeNextPending(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil from empty queue, got %+v", c)
	}
}

func TestMarkDeliveredIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	c := testCommit("abc123", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	for i := 0; i < 3; i++ {
		if err := s.MarkDelivered(ctx, c); err != nil {
			t.Fatalf("mark delivered %d: %v", i, err)
		}
	}

	delivered, err := s.IsDelivered(ctx, c.SHA)
	if err != nil {
		t.Fatalf("is delivered: %v", err)
	}
	if !delivered {
		t.Error("expected delivered")
	}

	var rows int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commits WHERE sha = ?`, c.SHA,
	).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected 1 row, got %d", rows)
	}
}

// TestMutualExclusion drives a random sequence of store operations over a
// small SHA space and checks after every step that no SHA is in both states
// at once and that no SHA ever moves back from delivered to pending.
func TestMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	rng := rand.New(rand.NewSource(42))

	shas := []string{"s1", "s2", "s3", "s4", "s5"}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	wasDelivered := map[string]bool{}

	checkInvariant := func(step int) {
		t.Helper()
		var violations int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM (SELECT sha FROM commits GROUP BY sha HAVING COUNT(*) > 1)`,
		).Scan(&violations)
		if err != nil {
			t.Fatalf("step %d: invariant query: %v", step, err)
		}
		if violations != 0 {
			t.Fatalf("step %d: %d SHAs present in both states", step, violations)
		}

		rows, err := s.db.QueryContext(ctx, `SELECT sha, status FROM commits`)
		if err != nil {
			t.Fatalf("step %d: status query: %v", step, err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var sha, status string
			if err := rows.Scan(&sha, &status); err != nil {
				t.Fatalf("step %d: scan: %v", step, err)
			}
			if status == string(model.StatusPending) && wasDelivered[sha] {
				t.Fatalf("step %d: %s moved back from delivered to pending", step, sha)
			}
			if status == string(model.StatusDelivered) {
				wasDelivered[sha] = true
			}
		}
		if err := rows.Err(); err != nil {
			t.Fatalf("step %d: rows: %v", step, err)
		}
	}

	for step := 0; step < 500; step++ {
		sha := shas[rng.Intn(len(shas))]
		c := testCommit(sha, base.Add(time.Duration(rng.Intn(100))*time.Minute))

		switch rng.Intn(4) {
		case 0:
			// Ingest path: skip if delivered, otherwise queue.
			delivered, err := s.IsDelivered(ctx, sha)
			if err != nil {
				t.Fatalf("step %d: is delivered: %v", step, err)
			}
			if !delivered {
				if _, err := s.UpsertPending(ctx, c); err != nil {
					t.Fatalf("step %d: upsert: %v", step, err)
				}
			}
		case 1:
			// Broadcast path: take then mark.
			taken, err := s.TakeNextPending(ctx)
			if err != nil {
				t.Fatalf("step %d: take: %v", step, err)
			}
			if taken != nil {
				if err := s.MarkDelivered(ctx, taken); err != nil {
					t.Fatalf("step %d: mark: %v", step, err)
				}
			}
		case 2:
			if err := s.MarkDelivered(ctx, c); err != nil {
				t.Fatalf("step %d: mark direct: %v", step, err)
			}
		case 3:
			if _, err := s.UpsertPending(ctx, c); err != nil {
				t.Fatalf("step %d: upsert direct: %v", step, err)
			}
		}

		checkInvariant(step)
	}
}

func TestCountPending(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		c := testCommit(fmt.Sprintf("sha%d", i), base.Add(time.Duration(i)*time.Minute))
		if _, err := s.UpsertPending(ctx, c); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	count, err := s.CountPending(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if diff := cmp.Diff(3, count); diff != "" {
		t.Errorf("pending count mismatch (-want +got):\n%s", diff)
	}
}

// Ensure the Store interface is satisfied.
var _ Store = (*SQLite)(nil)
