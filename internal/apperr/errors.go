// Package apperr holds the error classes shared across the monitor.
//
// Only ErrConfig is fatal (startup abort). The other classes are recovered
// inside the cycle that produced them.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers fetch and channel network failures, timeouts included.
	ErrTransport = errors.New("transport error")
	// ErrParseEmpty means the listing yielded no usable records.
	ErrParseEmpty = errors.New("no usable entries")
	// ErrPersistence covers snapshot store read/write failures.
	ErrPersistence = errors.New("persistence error")
	// ErrConfig means a mandatory setting or credential is missing at startup.
	ErrConfig = errors.New("config error")
)

func Transport(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

func Persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func Config(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
