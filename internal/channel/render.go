package channel

import (
	"strings"
	"unicode/utf8"

	"ticketwatch/internal/entry"
)

// Labels shared by every renderer.
const (
	ticketEmoji   = "🎫"
	headlineText  = "새로운 나눔티켓 발견!"
	headline      = ticketEmoji + " " + headlineText
	labelTitle    = "제목"
	labelDate     = "날짜"
	labelLocation = "장소"
	labelTags     = "태그"
	labelLink     = "자세히 보기"
)

type field struct {
	Name  string
	Value string
}

// optionalFields lists the secondary fields that are present, in display order.
func optionalFields(e entry.Entry) []field {
	var out []field
	if e.Date != "" {
		out = append(out, field{labelDate, e.Date})
	}
	if e.Location != "" {
		out = append(out, field{labelLocation, e.Location})
	}
	if tl := e.TagLine(); tl != "" {
		out = append(out, field{labelTags, tl})
	}
	return out
}

// truncate cuts s to at most max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return string(r[:1])
	}
	return string(r[:max-1]) + "…"
}

// singleLine folds all whitespace, CR and LF included, into single spaces.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
