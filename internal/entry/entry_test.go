package entry

import (
	"errors"
	"testing"

	logx "ticketwatch/pkg/logx"
)

const base = "https://www.nanumticket.or.kr"

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(Options{BaseURL: base}, logx.Nop())
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return n
}

func TestFingerprintStable(t *testing.T) {
	// Persisted state depends on this exact value.
	if got := Fingerprint("Concert A", base+"/x"); got != "8f7a2aed732f50e460ac3cd60a8c1dd2" {
		t.Fatalf("fingerprint = %s", got)
	}
	if got := Fingerprint("", ""); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Fatalf("md5 of empty input = %s", got)
	}
	if got := Fingerprint("a", "bc"); got != Fingerprint("ab", "c") {
		t.Fatalf("no separator expected between title and link")
	}
	if Fingerprint("ab", "c") == Fingerprint("c", "ab") {
		t.Fatalf("order of title and link must matter")
	}
}

func TestNormalizeResolvesLinks(t *testing.T) {
	n := newTestNormalizer(t)
	tests := []struct {
		name string
		href string
		want string
	}{
		{name: "root relative", href: "/pe/detail.html?p_idx=1", want: base + "/pe/detail.html?p_idx=1"},
		{name: "absolute", href: "https://example.com/a", want: "https://example.com/a"},
		{name: "relative", href: "detail.html?p_idx=2", want: base + "/detail.html?p_idx=2"},
		{name: "trimmed", href: "  /x  ", want: base + "/x"},
		{name: "non-ascii kept verbatim", href: "/pe/공연 상세.html?idx=1", want: base + "/pe/공연 상세.html?idx=1"},
		{name: "dot segments kept", href: "/pe/./a/../detail.html?idx=2", want: base + "/pe/./a/../detail.html?idx=2"},
		{name: "absolute kept verbatim", href: "https://example.com/공연?a=1", want: "https://example.com/공연?a=1"},
		{name: "protocol relative", href: "//cdn.example.com/x", want: "https://cdn.example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := n.Normalize(Raw{Title: "Concert A long", Href: tt.href})
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if e.Link != tt.want {
				t.Fatalf("Link = %q, want %q", e.Link, tt.want)
			}
			if e.ID != Fingerprint(e.Title, e.Link) {
				t.Fatalf("ID does not match fingerprint of title+link")
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	n := newTestNormalizer(t)
	tests := []struct {
		name string
		raw  Raw
		want error
	}{
		{name: "empty title", raw: Raw{Title: "", Href: "/x"}, want: ErrTitleTooShort},
		{name: "five chars", raw: Raw{Title: "12345", Href: "/x"}, want: ErrTitleTooShort},
		{name: "five hangul", raw: Raw{Title: "나눔티켓공", Href: "/x"}, want: ErrTitleTooShort},
		{name: "blank href", raw: Raw{Title: "Concert A", Href: " "}, want: ErrInvalidLink},
		{name: "javascript", raw: Raw{Title: "Concert A", Href: "javascript:void(0)"}, want: ErrInvalidLink},
		{name: "mailto", raw: Raw{Title: "Concert A", Href: "mailto:x@example.com"}, want: ErrInvalidLink},
		{name: "control char", raw: Raw{Title: "Concert A", Href: "/x\n/y"}, want: ErrInvalidLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := n.Normalize(Raw{Title: "123456", Href: "/x"}); err != nil {
		t.Fatalf("six characters should pass: %v", err)
	}
}

func TestNormalizeWithoutBaseRejectsRelative(t *testing.T) {
	n, err := NewNormalizer(Options{}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := n.Normalize(Raw{Title: "Concert A", Href: "/x"}); !errors.Is(err, ErrInvalidLink) {
		t.Fatalf("err = %v, want ErrInvalidLink", err)
	}
}

func TestSecondaryFieldsDoNotAffectID(t *testing.T) {
	n := newTestNormalizer(t)
	a, err := n.Normalize(Raw{Title: "Concert A", Href: "/x", DateText: "2024.01.01"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Normalize(Raw{Title: "Concert A", Href: "/x", DateText: "2024.02.02", LocationText: "Seoul", TagTexts: []string{"무료"}})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Fatalf("id changed with secondary fields: %s vs %s", a.ID, b.ID)
	}
}

func TestNormalizeAllKeepsFirstDuplicate(t *testing.T) {
	n := newTestNormalizer(t)
	raws := []Raw{
		{Title: "Concert A", Href: "/x", DateText: "first"},
		{Title: "tiny", Href: "/t"},
		{Title: "Art B show", Href: "/y", TagTexts: []string{" 무료 ", "", "할인"}},
		{Title: "Concert A", Href: base + "/x", DateText: "second"},
	}
	got := n.NormalizeAll(raws)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Title != "Concert A" || got[0].Date != "first" {
		t.Fatalf("first occurrence not kept: %+v", got[0])
	}
	if got[1].Title != "Art B show" {
		t.Fatalf("order not preserved: %+v", got)
	}
	if tl := got[1].TagLine(); tl != "무료, 할인" {
		t.Fatalf("TagLine = %q", tl)
	}
}
