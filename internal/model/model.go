// Package model defines the domain types used across the application.
package model

import "time"

// Status tracks where a commit sits in the broadcast lifecycle.
type Status string

// Lifecycle states. A commit moves from pending to delivered exactly once;
// there is no transition back.
const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
)

// Commit represents a single commit discovered by the search source.
// SHA is the sole deduplication key; it is assigned by the source system
// and never rewritten here.
type Commit struct {
	SHA        string
	URL        string
	Author     string // login of the commit author; empty when unknown
	Message    string
	AuthorDate time.Time
}
