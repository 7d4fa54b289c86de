// Package publisher defines the outbound publishing channel and its
// implementations.
package publisher

import "context"

// Publisher sends one rendered message to the channel.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}
