// Package availability watches one detail page until its booking marker no
// longer reads sold out, then announces the page once through the notifier.
package availability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/entry"
	"ticketwatch/internal/notifier"
	logx "ticketwatch/pkg/logx"
)

const (
	DefaultSelector    = "#tab_area a"
	DefaultSoldOutText = "매진"
	DefaultInterval    = 5 * time.Second

	availableTag = "예매 가능"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Notifier interface {
	Notify(ctx context.Context, e entry.Entry) notifier.Outcome
}

type Config struct {
	URL string
	// Selector picks the booking marker; the first match is read.
	Selector    string
	SoldOutText string
	Interval    time.Duration
	// Title overrides the page <title> in the announcement.
	Title string
}

// State is what one look at the page found.
type State struct {
	Available bool   `json:"available"`
	Label     string `json:"label"`
	Title     string `json:"title,omitempty"`
}

type Watcher struct {
	cfg   Config
	fetch Fetcher
	notif Notifier
	log   logx.Logger
}

func New(cfg Config, f Fetcher, n Notifier, log logx.Logger) (*Watcher, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("availability: url must be an absolute http(s) url: %q", cfg.URL)
	}
	if strings.TrimSpace(cfg.Selector) == "" {
		cfg.Selector = DefaultSelector
	}
	if strings.TrimSpace(cfg.SoldOutText) == "" {
		cfg.SoldOutText = DefaultSoldOutText
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if f == nil || n == nil {
		return nil, errors.New("availability: fetcher and notifier are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{cfg: cfg, fetch: f, notif: n, log: log}, nil
}

// Inspect reads the marker out of a detail page. A page without the marker
// is ErrParseEmpty.
func Inspect(body []byte, selector, soldOut string) (State, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", apperr.ErrParseEmpty, err)
	}
	marker := doc.Find(selector).First()
	if marker.Length() == 0 {
		return State{}, fmt.Errorf("%w: %s not found", apperr.ErrParseEmpty, selector)
	}
	label := strings.TrimSpace(marker.Text())
	return State{
		Available: label != soldOut,
		Label:     label,
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
	}, nil
}

// Check fetches the page once.
func (w *Watcher) Check(ctx context.Context) (State, error) {
	body, err := w.fetch.Fetch(ctx, w.cfg.URL)
	if err != nil {
		return State{}, err
	}
	return Inspect(body, w.cfg.Selector, w.cfg.SoldOutText)
}

// Run polls until the page is available, announces it once and returns the
// delivery outcome. Failed checks are logged and retried on the next tick.
// Cancellation returns ctx.Err() without announcing anything.
func (w *Watcher) Run(ctx context.Context) (notifier.Outcome, error) {
	w.log.Info("availability watch started",
		logx.String("url", w.cfg.URL),
		logx.String("selector", w.cfg.Selector),
		logx.Duration("interval", w.cfg.Interval),
	)
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()

	for checks := 1; ; checks++ {
		st, err := w.Check(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return notifier.Outcome{}, ctx.Err()
			}
			w.log.Warn("availability check failed", logx.Int("check", checks), logx.Err(err))
		case st.Available:
			w.log.Info("page is available", logx.String("label", st.Label), logx.Int("checks", checks))
			return w.notif.Notify(ctx, w.announcement(st)), nil
		default:
			w.log.Debug("still sold out", logx.String("label", st.Label), logx.Int("check", checks))
		}

		select {
		case <-ctx.Done():
			return notifier.Outcome{}, ctx.Err()
		case <-t.C:
		}
	}
}

func (w *Watcher) announcement(st State) entry.Entry {
	title := strings.TrimSpace(w.cfg.Title)
	if title == "" {
		title = st.Title
	}
	if title == "" {
		title = w.cfg.URL
	}
	tags := []string{availableTag}
	if st.Label != "" {
		tags = append(tags, st.Label)
	}
	return entry.Entry{
		ID:    entry.Fingerprint(title, w.cfg.URL),
		Title: title,
		Link:  w.cfg.URL,
		Tags:  tags,
	}
}
