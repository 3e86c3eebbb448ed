// Package fetch downloads the listing page.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ticketwatch/internal/apperr"
	logx "ticketwatch/pkg/logx"
)

type Config struct {
	Timeout   time.Duration // per request; default 15s
	MaxBytes  int64         // default 5 MiB
	UserAgent string
	// AcceptLanguage defaults to Korean, which is what the listing serves.
	AcceptLanguage string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 5 << 20
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = "ko-KR,ko;q=0.9,en;q=0.8"
	}
}

// Fetcher performs the GET of one listing page.
type Fetcher struct {
	client *http.Client
	cfg    Config
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) *Fetcher {
	cfg.defaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		cfg: cfg,
		log: log,
	}
}

// Fetch returns the body of a 2xx response. Network failures, timeouts,
// non-2xx statuses and oversized bodies are ErrTransport.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Transport("fetch", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperr.Transport("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, apperr.Transport("fetch", fmt.Errorf("http %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, apperr.Transport("fetch: read body", err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, apperr.Transport("fetch", fmt.Errorf("body exceeds %d bytes", f.cfg.MaxBytes))
	}
	f.log.Debug("page fetched", logx.Int("status", resp.StatusCode), logx.Int("bytes", len(body)), logx.Duration("took", time.Since(start)))
	return body, nil
}
