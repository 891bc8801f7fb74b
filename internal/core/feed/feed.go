// Package feed defines the upstream feed collaborator contract. The collector
// consumes items one at a time through Client and never sees transport
// details; adapters convert raw upstream failures into the tagged Error type
// so the engine can classify them without inspecting provider shapes.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Item is one raw entry pulled from the upstream feed.
type Item struct {
	ID         string
	Text       string
	CreatedAt  time.Time
	IsReshare  bool
	IsReply    bool
	Likes      int
	Reposts    int
	Replies    int
	AuthorName string
	Raw        map[string]any
}

// Client yields upstream items in order. Next returns ErrEndOfFeed once the
// sequence is exhausted; any other failure is reported as *Error.
type Client interface {
	Next(ctx context.Context) (*Item, error)
}

// ErrEndOfFeed signals normal exhaustion of the upstream sequence.
var ErrEndOfFeed = errors.New("end of feed")

// Error is the tagged failure shape produced at the feed-client boundary.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "feed error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("feed error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("feed error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts the tagged feed error when present.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
