package parse

import (
	"reflect"
	"testing"

	logx "ticketwatch/pkg/logx"
)

const listingHTML = `<!doctype html>
<html><body>
<ul class="menu"><li><a href="/menu"><h4>Not a ticket at all</h4></a></li></ul>
<ul class="ticket_list">
  <li>
    <a href="/pe/detail.html?p_idx=101">
      <div class="thumb"><img src="x.jpg"></div>
      <h4>
        Concert <b>A</b> Night
      </h4>
    </a>
    <p><i class="fa-solid fa-clock"></i> 2025.03.01 ~ 2025.03.02 </p>
    <p><i class="fa-solid fa-location-dot"></i>
       Seoul Arts Center</p>
    <span class="blue">무료</span>
    <span class="red">ignored</span>
    <span class="orange"> 할인 </span>
  </li>
  <li>
    <h4>Orphan heading without link</h4>
  </li>
  <li><a href="https://example.com/y"><h4>Art B exhibition</h4></a></li>
  <li><p>no heading here</p></li>
</ul>
</body></html>`

func TestHTMLParserExtractsRecords(t *testing.T) {
	p := NewHTML("", logx.Nop())
	got, err := p.Parse([]byte(listingHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2: %+v", len(got), got)
	}

	first := got[0]
	if first.Title != "ConcertANight" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.Href != "/pe/detail.html?p_idx=101" {
		t.Fatalf("href = %q", first.Href)
	}
	if first.DateText != "2025.03.01 ~ 2025.03.02" {
		t.Fatalf("date = %q", first.DateText)
	}
	if first.LocationText != "Seoul Arts Center" {
		t.Fatalf("location = %q", first.LocationText)
	}
	if !reflect.DeepEqual(first.TagTexts, []string{"무료", "할인"}) {
		t.Fatalf("tags = %q", first.TagTexts)
	}

	second := got[1]
	if second.Title != "Art B exhibition" || second.Href != "https://example.com/y" {
		t.Fatalf("second = %+v", second)
	}
	if second.DateText != "" || second.LocationText != "" || second.TagTexts != nil {
		t.Fatalf("second should have empty optional fields: %+v", second)
	}
}

func TestHTMLParserMissingContainer(t *testing.T) {
	got, err := NewHTML("", logx.Nop()).Parse([]byte(`<html><body><p>maintenance</p></body></html>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestHTMLParserCustomSelector(t *testing.T) {
	body := `<div id="new"><ol><li><a href="/z"><h4>Play C matinee</h4></a></li></ol></div>`
	got, err := NewHTML("#new ol", logx.Nop()).Parse([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Href != "/z" {
		t.Fatalf("got %+v", got)
	}
}

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Tickets</title>
<item><title> Concert A Night </title><link>https://example.com/x</link>
<category>무료</category><pubDate>Sat, 01 Mar 2025 10:00:00 +0900</pubDate></item>
<item><title>Art B exhibition</title><link>https://example.com/y</link></item>
</channel></rss>`

func TestFeedParser(t *testing.T) {
	p, err := New(Config{Format: FormatFeed}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Parse([]byte(rssFeed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d", len(got))
	}
	if got[0].Title != "Concert A Night" || got[0].Href != "https://example.com/x" {
		t.Fatalf("first = %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].TagTexts, []string{"무료"}) || got[0].DateText == "" {
		t.Fatalf("first optional fields = %+v", got[0])
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "pdf"}, logx.Nop()); err == nil {
		t.Fatalf("expected error")
	}
}
