// Package entry turns raw listing records into canonical entries with a
// stable identity.
package entry

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	logx "ticketwatch/pkg/logx"
)

// DefaultMinTitleLength rejects titles of five characters or less.
const DefaultMinTitleLength = 6

var (
	ErrTitleTooShort = errors.New("title too short")
	ErrInvalidLink   = errors.New("link is not an absolute http(s) url")
)

// Raw is one record as extracted from the listing markup.
type Raw struct {
	Title        string
	Href         string
	DateText     string
	LocationText string
	TagTexts     []string
}

// Entry is a validated listing item. ID depends on Title and Link only, so
// edits to date, location or tags never re-trigger a notification.
type Entry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Link     string   `json:"link"`
	Date     string   `json:"date,omitempty"`
	Location string   `json:"location,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// TagLine is the display form of Tags.
func (e Entry) TagLine() string { return strings.Join(e.Tags, ", ") }

// Fingerprint is hex(md5(title + link)). The scheme is persisted in snapshot
// files, so it must not change: title first, no separator.
func Fingerprint(title, link string) string {
	sum := md5.Sum([]byte(title + link))
	return hex.EncodeToString(sum[:])
}

type Options struct {
	// BaseURL is the origin relative hrefs are resolved against.
	BaseURL        string
	MinTitleLength int
}

type Normalizer struct {
	base   *url.URL
	minLen int
	log    logx.Logger
}

func NewNormalizer(opt Options, log logx.Logger) (*Normalizer, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	var base *url.URL
	if s := strings.TrimSpace(opt.BaseURL); s != "" {
		u, err := url.Parse(s)
		if err != nil {
			return nil, err
		}
		if !u.IsAbs() || u.Host == "" {
			return nil, errors.New("entry: base url must be absolute: " + s)
		}
		base = u
	}
	minLen := opt.MinTitleLength
	if minLen <= 0 {
		minLen = DefaultMinTitleLength
	}
	return &Normalizer{base: base, minLen: minLen, log: log}, nil
}

// Normalize validates one raw record.
func (n *Normalizer) Normalize(r Raw) (Entry, error) {
	title := strings.TrimSpace(r.Title)
	if utf8.RuneCountInString(title) < n.minLen {
		return Entry{}, ErrTitleTooShort
	}
	link, err := n.resolve(r.Href)
	if err != nil {
		return Entry{}, err
	}

	var tags []string
	for _, t := range r.TagTexts {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return Entry{
		ID:       Fingerprint(title, link),
		Title:    title,
		Link:     link,
		Date:     strings.TrimSpace(r.DateText),
		Location: strings.TrimSpace(r.LocationText),
		Tags:     tags,
	}, nil
}

// NormalizeAll keeps parse order, drops rejected records and keeps only the
// first occurrence of a duplicate ID.
func (n *Normalizer) NormalizeAll(raws []Raw) []Entry {
	out := make([]Entry, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, r := range raws {
		e, err := n.Normalize(r)
		if err != nil {
			n.log.Debug("entry rejected", logx.Int("index", i), logx.String("title", r.Title), logx.String("href", r.Href), logx.Err(err))
			continue
		}
		if _, dup := seen[e.ID]; dup {
			n.log.Debug("duplicate entry dropped", logx.String("id", e.ID), logx.String("title", e.Title))
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// resolve keeps hrefs as written wherever it can: the link is part of the
// fingerprint, so re-encoding or cleaning a path would change stored ids.
// Root-relative hrefs are appended to the base origin verbatim; only other
// relative forms go through ResolveReference.
func (n *Normalizer) resolve(href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.ContainsFunc(href, unicode.IsControl) {
		return "", ErrInvalidLink
	}
	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		if n.base == nil {
			return "", ErrInvalidLink
		}
		return n.base.Scheme + "://" + n.base.Host + href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", ErrInvalidLink
	}
	link := href
	if !ref.IsAbs() {
		if n.base == nil {
			return "", ErrInvalidLink
		}
		ref = n.base.ResolveReference(ref)
		link = ref.String()
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return "", ErrInvalidLink
	}
	return link, nil
}
