package config

import (
	"errors"
	"net"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"ticketwatch/internal/apperr"
)

// Validate checks field shapes. Call ApplyDefaults first.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Source),
		validation.Field(&c.Poll),
		validation.Field(&c.Storage),
		validation.Field(&c.Notify),
		validation.Field(&c.Status),
	); err != nil {
		return apperr.Config("%v", err)
	}
	return nil
}

func (s SourceConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.URL, validation.Required, is.URL),
		validation.Field(&s.BaseURL, is.URL),
		validation.Field(&s.Format, validation.In("html", "feed")),
		validation.Field(&s.Timeout, durationRule("source.timeout")),
		validation.Field(&s.MinTitleLength, validation.Min(1)),
		validation.Field(&s.MaxNotify, validation.Min(0)),
		validation.Field(&s.MaxBytes, validation.Min(int64(0))),
	)
}

func (p PollConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Schedule, validation.By(func(v any) error {
			s, _ := v.(string)
			_, err := ParseSchedule(s)
			return err
		})),
		validation.Field(&p.RetryBackoff, durationRule("poll.retry_backoff")),
	)
}

func (s StorageConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Mode, validation.In("durable", "ephemeral")),
		validation.Field(&s.Driver, validation.In("file", "sqlite", "memory")),
		validation.Field(&s.Path, validation.When(s.Mode != "ephemeral" && s.Driver != "memory", validation.Required)),
		validation.Field(&s.BusyTimeout, durationRule("storage.busy_timeout")),
	)
}

func (n NotifyConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.SendTimeout, durationRule("notify.send_timeout")),
		validation.Field(&n.Pace, durationRule("notify.pace")),
		validation.Field(&n.HistorySize, validation.Min(0)),
		validation.Field(&n.Discord),
		validation.Field(&n.Email),
		validation.Field(&n.Desktop),
	)
}

func (d DiscordConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.WebhookURL, is.URL),
	)
}

func (e EmailConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.SMTPPort, validation.Min(1), validation.Max(65535)),
		validation.Field(&e.SenderEmail, is.EmailFormat),
		validation.Field(&e.ReceiverEmail, is.EmailFormat),
	)
}

func (d DesktopConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.MaxLength, validation.Min(0)),
		validation.Field(&d.Timeout, durationRule("notify.desktop.timeout")),
	)
}

func durationRule(path string) validation.Rule {
	return validation.By(func(v any) error {
		s, _ := v.(string)
		_, err := ParseDurationField(path, s)
		return err
	})
}

// CheckChannels fails when a required channel lacks credentials or when no
// channel could deliver anything at all.
func (c *Config) CheckChannels() error {
	n := c.Notify
	var missing []string
	if n.Discord.Required && !n.Discord.Configured() {
		missing = append(missing, "discord.webhook_url ("+EnvDiscordWebhookURL+")")
	}
	if n.Telegram.Required && !n.Telegram.Configured() {
		missing = append(missing, "telegram.bot_token/chat_id ("+EnvTelegramBotToken+", "+EnvTelegramChatID+")")
	}
	if n.Email.Required && !n.Email.Configured() {
		missing = append(missing, "email sender/password/receiver")
	}
	if len(missing) > 0 {
		return apperr.Config("required channel credentials missing: %s", strings.Join(missing, "; "))
	}

	usable := (n.Discord.IsEnabled() && n.Discord.Configured()) ||
		(n.Telegram.IsEnabled() && n.Telegram.Configured()) ||
		(n.Email.IsEnabled() && n.Email.Configured()) ||
		n.Desktop.IsEnabled()
	if !usable {
		return apperr.Config("no notification channel is enabled with complete credentials")
	}
	return nil
}

func (s StatusConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required, validation.By(func(v any) error {
			addr, _ := v.(string)
			if _, _, err := net.SplitHostPort(addr); err != nil {
				return err
			}
			if strings.TrimSpace(s.Token) == "" && !IsLoopbackAddr(addr) {
				return errors.New("non-loopback addr requires status.token")
			}
			return nil
		})),
	)
}

// IsLoopbackAddr reports whether a host:port binds to localhost only.
func IsLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
