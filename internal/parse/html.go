package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ticketwatch/internal/entry"
	logx "ticketwatch/pkg/logx"
)

const (
	DefaultListSelector = "ul.ticket_list"

	dateIconSelector     = "i.fa-clock"
	locationIconSelector = "i.fa-location-dot"
	tagSelector          = "span.blue, span.gray, span.orange"
)

// HTMLParser reads the ticket listing markup:
//
//	<ul class="ticket_list">
//	  <li><a href="/pe/detail.html?..."><h4>Title</h4></a>
//	      <p><i class="fa-solid fa-clock"></i>2025.01.01</p>
//	      <p><i class="fa-solid fa-location-dot"></i>Seoul</p>
//	      <span class="blue">무료</span></li>
//	</ul>
type HTMLParser struct {
	listSelector string
	log          logx.Logger
}

func NewHTML(listSelector string, log logx.Logger) *HTMLParser {
	if strings.TrimSpace(listSelector) == "" {
		listSelector = DefaultListSelector
	}
	return &HTMLParser{listSelector: listSelector, log: log}
}

func (p *HTMLParser) Parse(body []byte) ([]entry.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	list := doc.Find(p.listSelector).First()
	if list.Length() == 0 {
		p.log.Warn("listing container not found", logx.String("selector", p.listSelector))
		return []entry.Raw{}, nil
	}

	items := list.Find("li")
	out := make([]entry.Raw, 0, items.Length())
	items.Each(func(i int, li *goquery.Selection) {
		h4 := li.Find("h4").First()
		if h4.Length() == 0 {
			return
		}
		a := h4.ParentsFiltered("a").First()
		if a.Length() == 0 {
			p.log.Debug("listing item without link", logx.Int("index", i))
			return
		}
		href, _ := a.Attr("href")

		raw := entry.Raw{
			Title:        strippedText(h4),
			Href:         href,
			DateText:     iconParagraphText(li, dateIconSelector),
			LocationText: iconParagraphText(li, locationIconSelector),
		}
		li.Find(tagSelector).Each(func(_ int, s *goquery.Selection) {
			if t := strippedText(s); t != "" {
				raw.TagTexts = append(raw.TagTexts, t)
			}
		})
		out = append(out, raw)
	})
	p.log.Debug("listing parsed", logx.Int("items", items.Length()), logx.Int("records", len(out)))
	return out, nil
}

// iconParagraphText returns the text of the <p> that holds the first icon
// matching sel.
func iconParagraphText(li *goquery.Selection, sel string) string {
	icon := li.Find(sel).First()
	if icon.Length() == 0 {
		return ""
	}
	para := icon.ParentsFiltered("p").First()
	if para.Length() == 0 {
		return ""
	}
	return strippedText(para)
}

// strippedText trims every text node and concatenates them without a
// separator. Titles hash into persisted ids, so this must stay byte-stable.
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(strings.TrimSpace(c.Text()))
			case "#comment", "script", "style":
			default:
				walk(c)
			}
		})
	}
	walk(s)
	return b.String()
}
