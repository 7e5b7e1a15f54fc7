package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sink failure classification. RateLimited informs the worker's local budget;
// Auth and anything else are plain transient failures for retry purposes.
var (
	ErrRateLimited = errors.New("sink rate limited")
	ErrAuth        = errors.New("sink authentication failed")
)

// Channel identifies a fan-out destination.
type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelSocial Channel = "x"
)

// DeliveryStatus enumerates queue states. InProgress is a short-lived claim
// marker so concurrent workers never process the same record; Completed and
// Failed are terminal.
type DeliveryStatus string

const (
	DeliveryQueued     DeliveryStatus = "queued"
	DeliveryHeld       DeliveryStatus = "held"
	DeliveryInProgress DeliveryStatus = "in_progress"
	DeliveryCompleted  DeliveryStatus = "completed"
	DeliveryFailed     DeliveryStatus = "failed"
)

// MaxDeliveryAttempts is the retry ceiling; a record that fails this many
// times becomes Failed and is never retried automatically.
const MaxDeliveryAttempts = 5

// Payload carries channel-specific send instructions. Web deliveries use
// Paths, social deliveries use Text.
type Payload struct {
	Paths []string `json:"paths,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// Validate checks payload completeness for the given channel. An invalid
// payload is a data-integrity problem, not a transient failure: the worker
// skips it without consuming an attempt.
func (p Payload) Validate(ch Channel) error {
	switch ch {
	case ChannelWeb:
		if len(p.Paths) == 0 {
			return fmt.Errorf("web payload has no paths")
		}
	case ChannelSocial:
		if p.Text == "" {
			return fmt.Errorf("social payload has no text")
		}
	default:
		return fmt.Errorf("unknown channel %q", ch)
	}
	return nil
}

// Delivery is one queued unit of fan-out work tied to a post. Created by the
// delivery factory at post-creation time and mutated only by the worker.
type Delivery struct {
	ID            string
	PostID        string
	Channel       Channel
	Payload       Payload
	Status        DeliveryStatus
	Attempts      int
	LastError     string
	LastAttemptAt *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}
