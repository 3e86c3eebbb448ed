package config

import (
	"strings"
)

// Config is the whole ticketwatch configuration file.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "5m").
type Config struct {
	Source  SourceConfig  `json:"source"`
	Poll    PollConfig    `json:"poll"`
	Storage StorageConfig `json:"storage"`
	Notify  NotifyConfig  `json:"notify"`
	Logging LoggingConfig `json:"logging"`
	Status  StatusConfig  `json:"status"`
}

// SourceConfig describes the listing page and how to read it.
type SourceConfig struct {
	URL string `json:"url"`
	// BaseURL resolves relative links. Defaults to the origin of URL.
	BaseURL   string `json:"base_url,omitempty"`
	Format    string `json:"format,omitempty"` // "html" (default) or "feed"
	UserAgent string `json:"user_agent,omitempty"`
	Timeout   string `json:"timeout,omitempty"`

	MinTitleLength int `json:"min_title_length,omitempty"`
	// MaxNotify bounds notifications per cycle. 0 means unlimited.
	MaxNotify    int    `json:"max_notify,omitempty"`
	ListSelector string `json:"list_selector,omitempty"`
	MaxBytes     int64  `json:"max_bytes,omitempty"`
}

// PollConfig controls the poll loop.
//
// Schedule is a cron spec or descriptor ("@every 5m", "*/10 * * * *").
type PollConfig struct {
	Schedule     string `json:"schedule"`
	RetryBackoff string `json:"retry_backoff,omitempty"`
}

// StorageConfig controls snapshot persistence.
//
// Example:
//
//	"storage": { "mode": "durable", "driver": "file", "path": "./ticket_data.json" }
type StorageConfig struct {
	Mode        string `json:"mode,omitempty"`   // durable (default) | ephemeral
	Driver      string `json:"driver,omitempty"` // file (default) | sqlite | memory
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// NotifyConfig holds dispatcher settings and per-channel credentials.
// It is read once at startup; reloads do not touch it.
type NotifyConfig struct {
	SendTimeout string `json:"send_timeout,omitempty"`
	// Pace is the minimum gap between two sends on a chat channel.
	Pace        string `json:"pace,omitempty"`
	Parallel    bool   `json:"parallel,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`

	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
	Email    EmailConfig    `json:"email"`
	Desktop  DesktopConfig  `json:"desktop"`
}

// Channel sections share the same switch semantics: Enabled omitted means
// "on if the credentials are complete"; Required turns missing credentials
// into a startup error.
type DiscordConfig struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	Required   bool   `json:"required,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
	Username   string `json:"username,omitempty"`
	Footer     string `json:"footer,omitempty"`
}

func (c DiscordConfig) Configured() bool { return strings.TrimSpace(c.WebhookURL) != "" }
func (c DiscordConfig) IsEnabled() bool  { return resolveEnabled(c.Enabled, c.Configured()) }

type TelegramConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Required bool   `json:"required,omitempty"`
	BotToken string `json:"bot_token,omitempty"`
	// ChatID is a numeric chat id or an @channel username.
	ChatID string `json:"chat_id,omitempty"`
	// APIURL overrides the Bot API endpoint (self-hosted API servers).
	APIURL string `json:"api_url,omitempty"`
}

func (c TelegramConfig) Configured() bool {
	return strings.TrimSpace(c.BotToken) != "" && strings.TrimSpace(c.ChatID) != ""
}
func (c TelegramConfig) IsEnabled() bool { return resolveEnabled(c.Enabled, c.Configured()) }

type EmailConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Required       bool   `json:"required,omitempty"`
	SMTPServer     string `json:"smtp_server,omitempty"`
	SMTPPort       int    `json:"smtp_port,omitempty"`
	SenderEmail    string `json:"sender_email,omitempty"`
	SenderPassword string `json:"sender_password,omitempty"`
	ReceiverEmail  string `json:"receiver_email,omitempty"`
}

func (c EmailConfig) Configured() bool {
	return strings.TrimSpace(c.SenderEmail) != "" &&
		strings.TrimSpace(c.SenderPassword) != "" &&
		strings.TrimSpace(c.ReceiverEmail) != ""
}
func (c EmailConfig) IsEnabled() bool { return resolveEnabled(c.Enabled, c.Configured()) }

// DesktopConfig has no credentials; it is on only when enabled explicitly.
type DesktopConfig struct {
	Enabled   *bool  `json:"enabled,omitempty"`
	AppName   string `json:"app_name,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

func (c DesktopConfig) Configured() bool { return true }
func (c DesktopConfig) IsEnabled() bool  { return c.Enabled != nil && *c.Enabled }

func resolveEnabled(flag *bool, configured bool) bool {
	if flag != nil {
		return *flag
	}
	return configured
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StatusConfig controls the optional health/status HTTP server.
//
// Prefer binding to localhost; the status page lists entry titles. A
// non-loopback Addr requires Token.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8089"
	// Token guards /status and /debug with a bearer token. Health probes stay open.
	Token string `json:"token,omitempty"`
	// Pprof mounts net/http/pprof under /debug.
	Pprof bool `json:"pprof,omitempty"`
}

// Bool returns a pointer to v, for the channel Enabled switches.
func Bool(v bool) *bool { return &v }
