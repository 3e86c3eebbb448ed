package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/entry"
)

// Discord embed limits.
const (
	discordTitleMax       = 256
	discordDescriptionMax = 4096
	discordFieldMax       = 1024
	discordColorGreen     = 0x00ff00
)

var discordEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`",
	"|", `\|`, ">", `\>`, "#", `\#`, "[", `\[`, "]", `\]`,
)

type DiscordOptions struct {
	WebhookURL string
	Username   string
	Footer     string
	Pace       time.Duration
	Client     *http.Client
	Now        func() time.Time
}

// Discord posts one embed per entry to a webhook.
type Discord struct {
	opt DiscordOptions
}

func NewDiscord(opt DiscordOptions) *Discord {
	if opt.Client == nil {
		opt.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Discord{opt: opt}
}

func (d *Discord) Name() string        { return "discord" }
func (d *Discord) Pace() time.Duration { return d.opt.Pace }
func (d *Discord) Ready() bool         { return strings.TrimSpace(d.opt.WebhookURL) != "" }

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (d *Discord) payload(e entry.Entry) discordPayload {
	embed := discordEmbed{
		Title:       truncate(headline, discordTitleMax),
		Description: truncate(escapeDiscord(e.Title), discordDescriptionMax),
		URL:         e.Link,
		Color:       discordColorGreen,
		Timestamp:   d.opt.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range optionalFields(e) {
		embed.Fields = append(embed.Fields, discordField{
			Name:   f.Name,
			Value:  truncate(escapeDiscord(f.Value), discordFieldMax),
			Inline: true,
		})
	}
	if footer := strings.TrimSpace(d.opt.Footer); footer != "" {
		embed.Footer = &discordFooter{Text: footer}
	}
	return discordPayload{Username: strings.TrimSpace(d.opt.Username), Embeds: []discordEmbed{embed}}
}

func (d *Discord) Deliver(ctx context.Context, e entry.Entry) error {
	if !d.Ready() {
		return ErrSkipped
	}
	body, err := json.Marshal(d.payload(e))
	if err != nil {
		return apperr.Transport("discord: encode", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opt.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return apperr.Transport("discord: request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.opt.Client.Do(req)
	if err != nil {
		return apperr.Transport("discord", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return apperr.Transport("discord", fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
}

func escapeDiscord(s string) string { return discordEscaper.Replace(s) }
