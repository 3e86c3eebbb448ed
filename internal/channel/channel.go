// Package channel delivers one notification for one entry over one medium.
//
// Deliver contract:
//   - nil: delivered
//   - ErrSkipped: channel switched off or missing credentials, not an error
//   - anything else: failed, wraps apperr.ErrTransport
//
// Channels make exactly one outbound call per Deliver and never retry.
package channel

import (
	"context"
	"errors"
	"time"

	"ticketwatch/internal/entry"
)

var ErrSkipped = errors.New("channel skipped")

type Channel interface {
	Name() string
	Deliver(ctx context.Context, e entry.Entry) error
}

// Paced channels ask the dispatcher to keep successive sends at least Pace()
// apart.
type Paced interface {
	Pace() time.Duration
}

// Readier channels can tell up front that Deliver would only skip. The
// dispatcher does not pace a channel that is not ready.
type Readier interface {
	Ready() bool
}

// Outcome is the classified result of one Deliver.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Delivered
	case errors.Is(err, ErrSkipped):
		return Skipped
	default:
		return Failed
	}
}
