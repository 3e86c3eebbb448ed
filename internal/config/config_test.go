package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ticketwatch/internal/apperr"
	logx "ticketwatch/pkg/logx"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvDiscordWebhookURL, EnvTelegramBotToken, EnvTelegramChatID,
		EnvSMTPSenderEmail, EnvSMTPSenderPassword, EnvSMTPReceiverEmail,
	} {
		t.Setenv(k, "")
	}
}

func TestLoadOrInitWritesDefault(t *testing.T) {
	clearCredentialEnv(t)
	for _, name := range []string{"ticketwatch.yaml", "ticketwatch.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			m := NewManager(path, logx.Nop())
			cfg, created, err := m.LoadOrInit()
			if err != nil {
				t.Fatalf("LoadOrInit: %v", err)
			}
			if !created {
				t.Fatalf("expected default file to be created")
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("default file missing: %v", err)
			}
			got := cfg.EnabledChannels()
			if len(got) != 1 || got[0] != "desktop" {
				t.Fatalf("enabled channels = %v, want [desktop]", got)
			}
			if cfg.Source.URL != DefaultSourceURL || cfg.Poll.Schedule != DefaultSchedule {
				t.Fatalf("defaults not applied: %+v", cfg.Source)
			}

			// Second call reads the file it wrote.
			_, created, err = NewManager(path, logx.Nop()).LoadOrInit()
			if err != nil || created {
				t.Fatalf("reload: created=%v err=%v", created, err)
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("source:\n  url: https://example.com\n  bogus: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewManager(path, logx.Nop()).Parse()
	if !errors.Is(err, apperr.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(path, []byte(`{} {}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path, logx.Nop()).Parse(); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		mut  func(c *Config)
	}{
		{name: "bad url", mut: func(c *Config) { c.Source.URL = "not a url" }},
		{name: "bad format", mut: func(c *Config) { c.Source.Format = "pdf" }},
		{name: "bad schedule", mut: func(c *Config) { c.Poll.Schedule = "every five minutes" }},
		{name: "bad duration", mut: func(c *Config) { c.Notify.Pace = "soon" }},
		{name: "negative duration", mut: func(c *Config) { c.Poll.RetryBackoff = "-1s" }},
		{name: "bad driver", mut: func(c *Config) { c.Storage.Driver = "redis" }},
		{name: "bad port", mut: func(c *Config) { c.Notify.Email.SMTPPort = 70000 }},
		{name: "bad email", mut: func(c *Config) { c.Notify.Email.SenderEmail = "nobody" }},
		{name: "negative title length", mut: func(c *Config) { c.Source.MinTitleLength = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.ApplyDefaults()
			tt.mut(c)
			if err := c.Validate(); !errors.Is(err, apperr.ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
		})
	}

	c := Default()
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestApplyEnvOverlay(t *testing.T) {
	c := Default()
	env := map[string]string{
		EnvDiscordWebhookURL: " https://discord.com/api/webhooks/1/abc ",
		EnvTelegramBotToken:  "123:abc",
		EnvTelegramChatID:    "@tickets",
	}
	c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if c.Notify.Discord.WebhookURL != "https://discord.com/api/webhooks/1/abc" {
		t.Fatalf("webhook = %q", c.Notify.Discord.WebhookURL)
	}
	if !c.Notify.Discord.IsEnabled() || !c.Notify.Telegram.IsEnabled() {
		t.Fatalf("channels with credentials should auto-enable")
	}
	if c.Notify.Email.IsEnabled() {
		t.Fatalf("email without credentials must stay off")
	}

	c.Notify.Discord.Enabled = Bool(false)
	if c.Notify.Discord.IsEnabled() {
		t.Fatalf("explicit enabled=false must win")
	}
}

func TestCheckChannels(t *testing.T) {
	c := Default()
	c.ApplyDefaults()
	if err := c.CheckChannels(); err != nil {
		t.Fatalf("desktop-only default should pass: %v", err)
	}

	c.Notify.Desktop.Enabled = Bool(false)
	if err := c.CheckChannels(); !errors.Is(err, apperr.ErrConfig) {
		t.Fatalf("no usable channel: err = %v", err)
	}

	c.Notify.Discord.WebhookURL = "https://discord.com/api/webhooks/1/abc"
	if err := c.CheckChannels(); err != nil {
		t.Fatalf("discord configured: %v", err)
	}

	c.Notify.Telegram.Required = true
	err := c.CheckChannels()
	if !errors.Is(err, apperr.ErrConfig) || !strings.Contains(err.Error(), "telegram") {
		t.Fatalf("required telegram: err = %v", err)
	}
}

func TestTimings(t *testing.T) {
	c := Default()
	c.Notify.Pace = "0s"
	tm, err := c.Timings()
	if err != nil {
		t.Fatal(err)
	}
	if tm.Pace != 0 || tm.RetryBackoff != 30*time.Second || tm.SendTimeout != 15*time.Second {
		t.Fatalf("timings = %+v", tm)
	}
}

func TestApplyDefaultsDerivesBaseURL(t *testing.T) {
	c := &Config{Source: SourceConfig{URL: "https://tickets.example.org/list?page=1"}}
	c.ApplyDefaults()
	if c.Source.BaseURL != "https://tickets.example.org" {
		t.Fatalf("base url = %q", c.Source.BaseURL)
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	a := Default()
	b := Default()
	b.Logging.Level = "debug"
	b.Notify.Telegram.BotToken = "secret-token"
	changed, _ := SummarizeConfigChange(a, b)
	if strings.Join(changed, ",") != "notify,logging" {
		t.Fatalf("changed = %v", changed)
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	clearCredentialEnv(t)
	path := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(path, []byte(`{"logging": {"level": "info"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path, logx.Nop())
	if _, _, err := m.LoadOrInit(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(700 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("level = %q", cfg.Logging.Level)
			}
			return
		case <-tick.C:
			// Keep rewriting until the watcher is up and sees it.
			_ = os.WriteFile(path, []byte(`{"logging": {"level": "debug"}}`), 0o600)
		case <-deadline:
			t.Fatalf("no config published")
		}
	}
}
