// Package parse turns a fetched listing body into raw entry records.
package parse

import (
	"fmt"
	"strings"

	"ticketwatch/internal/entry"
	logx "ticketwatch/pkg/logx"
)

const (
	FormatHTML = "html"
	FormatFeed = "feed"
)

// Parser extracts raw records in document order. A body that does not
// contain the expected listing yields an empty slice, not an error.
type Parser interface {
	Parse(body []byte) ([]entry.Raw, error)
}

type Config struct {
	Format       string
	ListSelector string
}

func New(cfg Config, log logx.Logger) (Parser, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatHTML:
		return NewHTML(cfg.ListSelector, log), nil
	case FormatFeed:
		return NewFeed(log), nil
	default:
		return nil, fmt.Errorf("unknown source format %q", cfg.Format)
	}
}
