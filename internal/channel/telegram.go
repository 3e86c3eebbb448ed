package channel

import (
	"context"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/entry"
)

// Raw field caps keep the escaped message well under the 4096 limit.
const (
	telegramTitleMax = 1024
	telegramFieldMax = 512
)

// MarkdownV2 reserved characters.
var telegramEscaper = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// Inside (...) of an inline link only ")" and "\" need escaping.
var telegramLinkEscaper = strings.NewReplacer(`\`, `\\`, ")", `\)`)

type TelegramOptions struct {
	BotToken string
	ChatID   string
	// APIURL defaults to the public Bot API.
	APIURL string
	Pace   time.Duration
	Client *http.Client
}

// Telegram sends a MarkdownV2 message through the Bot API.
type Telegram struct {
	opt TelegramOptions
	bot *tele.Bot
}

// chatRecipient accepts numeric ids and @channel usernames alike.
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

func NewTelegram(opt TelegramOptions) (*Telegram, error) {
	t := &Telegram{opt: opt}
	if strings.TrimSpace(opt.BotToken) == "" || strings.TrimSpace(opt.ChatID) == "" {
		return t, nil
	}
	client := opt.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(strings.TrimSpace(opt.APIURL), "/"),
		Token:   strings.TrimSpace(opt.BotToken),
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	t.bot = b
	return t, nil
}

func (t *Telegram) Name() string        { return "telegram" }
func (t *Telegram) Pace() time.Duration { return t.opt.Pace }
func (t *Telegram) Ready() bool         { return t.bot != nil }

func (t *Telegram) Deliver(ctx context.Context, e entry.Entry) error {
	if !t.Ready() {
		return ErrSkipped
	}
	text := renderTelegram(e)
	to := chatRecipient(strings.TrimSpace(t.opt.ChatID))
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}

	// Send has no context parameter; the client timeout bounds the call and
	// ctx bounds how long we wait for it.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(to, text, opts)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return apperr.Transport("telegram", err)
		}
		return nil
	case <-ctx.Done():
		return apperr.Transport("telegram", ctx.Err())
	}
}

func renderTelegram(e entry.Entry) string {
	var b strings.Builder
	b.WriteString(ticketEmoji + " *")
	b.WriteString(escapeTelegram(headlineText))
	b.WriteString("*\n\n*")
	b.WriteString(labelTitle)
	b.WriteString(":* ")
	b.WriteString(escapeTelegram(truncate(e.Title, telegramTitleMax)))
	b.WriteString("\n")
	for _, f := range optionalFields(e) {
		b.WriteString("*")
		b.WriteString(f.Name)
		b.WriteString(":* ")
		b.WriteString(escapeTelegram(truncate(f.Value, telegramFieldMax)))
		b.WriteString("\n")
	}
	b.WriteString("\n[")
	b.WriteString(labelLink)
	b.WriteString("](")
	b.WriteString(telegramLinkEscaper.Replace(e.Link))
	b.WriteString(")")
	return b.String()
}

func escapeTelegram(s string) string { return telegramEscaper.Replace(s) }
