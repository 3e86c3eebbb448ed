package config

import (
	"os"
	"strings"
)

// Environment variables that carry channel secrets. A non-empty value wins
// over the file.
const (
	EnvDiscordWebhookURL  = "DISCORD_WEBHOOK_URL"
	EnvTelegramBotToken   = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID     = "TELEGRAM_CHAT_ID"
	EnvSMTPSenderEmail    = "SMTP_SENDER_EMAIL"
	EnvSMTPSenderPassword = "SMTP_SENDER_PASSWORD"
	EnvSMTPReceiverEmail  = "SMTP_RECEIVER_EMAIL"
)

// ApplyEnv overlays credentials from the process environment.
func (c *Config) ApplyEnv() { c.applyEnv(os.LookupEnv) }

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Notify.Discord.WebhookURL, EnvDiscordWebhookURL)
	set(&c.Notify.Telegram.BotToken, EnvTelegramBotToken)
	set(&c.Notify.Telegram.ChatID, EnvTelegramChatID)
	set(&c.Notify.Email.SenderEmail, EnvSMTPSenderEmail)
	set(&c.Notify.Email.SenderPassword, EnvSMTPSenderPassword)
	set(&c.Notify.Email.ReceiverEmail, EnvSMTPReceiverEmail)
}
