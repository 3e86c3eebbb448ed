package availability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/entry"
	"ticketwatch/internal/fetch"
	"ticketwatch/internal/notifier"
	logx "ticketwatch/pkg/logx"
)

const (
	soldOutPage   = `<html><head><title>Opera D premiere</title></head><body><div id="tab_area"><a href="#">매진</a></div></body></html>`
	availablePage = `<html><head><title>Opera D premiere</title></head><body><div id="tab_area"><a href="/book">예매하기</a></div></body></html>`
)

type recordingNotifier struct {
	mu      sync.Mutex
	entries []entry.Entry
}

func (r *recordingNotifier) Notify(ctx context.Context, e entry.Entry) notifier.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return notifier.Outcome{Delivered: 1}
}

func (r *recordingNotifier) sent() []entry.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entry.Entry(nil), r.entries...)
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		available bool
		label     string
		err       error
	}{
		{name: "sold out", body: soldOutPage, available: false, label: "매진"},
		{name: "bookable", body: availablePage, available: true, label: "예매하기"},
		{name: "padded label", body: `<div id="tab_area"><a> 매진 </a><a>예매하기</a></div>`, available: false, label: "매진"},
		{name: "no marker", body: `<div id="other"><a>매진</a></div>`, err: apperr.ErrParseEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Inspect([]byte(tt.body), DefaultSelector, DefaultSoldOutText)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if st.Available != tt.available || st.Label != tt.label {
				t.Fatalf("state = %+v", st)
			}
		})
	}
}

func TestRunAnnouncesOnceWhenAvailable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		switch {
		case n == 2:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		case n < 4:
			_, _ = w.Write([]byte(soldOutPage))
		default:
			_, _ = w.Write([]byte(availablePage))
		}
	}))
	defer srv.Close()

	rec := &recordingNotifier{}
	w, err := New(Config{URL: srv.URL + "/pe/detail.html?p_idx=1", Interval: 10 * time.Millisecond},
		fetch.New(fetch.Config{}, logx.Nop()), rec, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Delivered != 1 || hits.Load() != 4 {
		t.Fatalf("outcome = %+v after %d hits", out, hits.Load())
	}
	sent := rec.sent()
	if len(sent) != 1 {
		t.Fatalf("announcements = %d", len(sent))
	}
	e := sent[0]
	if e.Title != "Opera D premiere" || e.Link != srv.URL+"/pe/detail.html?p_idx=1" {
		t.Fatalf("entry = %+v", e)
	}
	if e.ID != entry.Fingerprint(e.Title, e.Link) || len(e.Tags) != 2 || e.Tags[1] != "예매하기" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestRunStopsOnCancelWithoutAnnouncing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(soldOutPage))
	}))
	defer srv.Close()

	rec := &recordingNotifier{}
	w, err := New(Config{URL: srv.URL, Interval: 10 * time.Millisecond, Title: "Custom"},
		fetch.New(fetch.Config{}, logx.Nop()), rec, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	if _, err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if len(rec.sent()) != 0 {
		t.Fatalf("announced while sold out")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "detail.html", "ftp://example.com/x"} {
		if _, err := New(Config{URL: u}, fetch.New(fetch.Config{}, logx.Nop()), &recordingNotifier{}, logx.Nop()); err == nil {
			t.Fatalf("New(%q) accepted", u)
		}
	}
}

func TestTitleOverride(t *testing.T) {
	w, err := New(Config{URL: "https://www.nanumticket.or.kr/pe/detail.html?p_idx=12911", Title: "Custom"},
		fetch.New(fetch.Config{}, logx.Nop()), &recordingNotifier{}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	e := w.announcement(State{Available: true, Title: "Page"})
	if e.Title != "Custom" || len(e.Tags) != 1 {
		t.Fatalf("entry = %+v", e)
	}
}
