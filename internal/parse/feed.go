package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"ticketwatch/internal/entry"
	logx "ticketwatch/pkg/logx"
)

// FeedParser reads RSS, Atom or JSON feeds.
type FeedParser struct {
	fp  *gofeed.Parser
	log logx.Logger
}

func NewFeed(log logx.Logger) *FeedParser {
	return &FeedParser{fp: gofeed.NewParser(), log: log}
}

func (p *FeedParser) Parse(body []byte) ([]entry.Raw, error) {
	feed, err := p.fp.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	out := make([]entry.Raw, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		raw := entry.Raw{
			Title:    strings.TrimSpace(it.Title),
			Href:     strings.TrimSpace(it.Link),
			TagTexts: append([]string(nil), it.Categories...),
		}
		switch {
		case it.PublishedParsed != nil:
			raw.DateText = it.PublishedParsed.Format("2006.01.02 15:04")
		case it.Published != "":
			raw.DateText = it.Published
		}
		if raw.Href == "" && len(it.Links) > 0 {
			raw.Href = it.Links[0]
		}
		out = append(out, raw)
	}
	p.log.Debug("feed parsed", logx.String("title", feed.Title), logx.Int("records", len(out)))
	return out, nil
}
