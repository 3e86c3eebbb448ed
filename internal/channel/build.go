package channel

import (
	"fmt"
	"net/http"

	"ticketwatch/internal/config"
	logx "ticketwatch/pkg/logx"
)

// Deps are the runtime pieces channels need beyond their config section.
type Deps struct {
	Timings config.Timings
	// Client is shared by the HTTP based channels. Defaults to a client with
	// Timings.SendTimeout.
	Client  *http.Client
	Desktop DesktopNotifier
	Log     logx.Logger
}

// Build returns the channels whose switch resolves to on, in a fixed order.
// Enabled channels without credentials are built anyway and skip every
// delivery; required-ness is checked by config.CheckChannels.
func Build(cfg config.NotifyConfig, deps Deps) ([]Channel, error) {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: deps.Timings.SendTimeout}
	}
	t := deps.Timings

	var out []Channel
	if cfg.Discord.IsEnabled() {
		out = append(out, NewDiscord(DiscordOptions{
			WebhookURL: cfg.Discord.WebhookURL,
			Username:   cfg.Discord.Username,
			Footer:     cfg.Discord.Footer,
			Pace:       t.Pace,
			Client:     client,
		}))
		if !cfg.Discord.Configured() {
			log.Warn("discord enabled without webhook_url; deliveries will be skipped")
		}
	}
	if cfg.Telegram.IsEnabled() {
		tg, err := NewTelegram(TelegramOptions{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			APIURL:   cfg.Telegram.APIURL,
			Pace:     t.Pace,
			Client:   client,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		out = append(out, tg)
		if !cfg.Telegram.Configured() {
			log.Warn("telegram enabled without bot_token/chat_id; deliveries will be skipped")
		}
	}
	if cfg.Email.IsEnabled() {
		out = append(out, NewEmail(EmailOptions{
			SMTPServer:     cfg.Email.SMTPServer,
			SMTPPort:       cfg.Email.SMTPPort,
			SenderEmail:    cfg.Email.SenderEmail,
			SenderPassword: cfg.Email.SenderPassword,
			ReceiverEmail:  cfg.Email.ReceiverEmail,
			Timeout:        t.SendTimeout,
		}))
		if !cfg.Email.Configured() {
			log.Warn("email enabled without sender/password/receiver; deliveries will be skipped")
		}
	}
	if cfg.Desktop.IsEnabled() {
		out = append(out, NewDesktop(DesktopOptions{
			AppName:   cfg.Desktop.AppName,
			MaxLength: cfg.Desktop.MaxLength,
			Timeout:   t.DesktopTimeout,
			Notifier:  deps.Desktop,
		}))
	}

	names := make([]string, 0, len(out))
	for _, c := range out {
		names = append(names, c.Name())
	}
	log.Info("notification channels built", logx.Any("channels", names))
	return out, nil
}
