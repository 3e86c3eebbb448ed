package config

import (
	"net/url"
	"strings"
)

const (
	DefaultSourceURL    = "https://www.nanumticket.or.kr/pe/list.html?p_new=1"
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultListSelector = "ul.ticket_list"
	DefaultMaxBytes     = 5 << 20
	DefaultSchedule     = "@every 5m"
	DefaultStatusAddr   = "127.0.0.1:8089"
	DefaultSMTPServer   = "smtp.gmail.com"
	DefaultSMTPPort     = 587
	DefaultDesktopMax   = 100
	DefaultStoragePath  = "./ticket_data.json"
)

// Default is the configuration written when no file exists: only the
// desktop channel is switched on, remote channels follow their credentials.
func Default() *Config {
	cfg := &Config{
		Source: SourceConfig{
			URL:            DefaultSourceURL,
			BaseURL:        "https://www.nanumticket.or.kr",
			Format:         "html",
			Timeout:        "15s",
			MinTitleLength: 6,
		},
		Poll: PollConfig{
			Schedule:     DefaultSchedule,
			RetryBackoff: "30s",
		},
		Storage: StorageConfig{
			Mode:   "durable",
			Driver: "file",
			Path:   DefaultStoragePath,
		},
		Notify: NotifyConfig{
			SendTimeout: "15s",
			Pace:        "1s",
			Email: EmailConfig{
				SMTPServer: DefaultSMTPServer,
				SMTPPort:   DefaultSMTPPort,
			},
			Desktop: DesktopConfig{
				Enabled:   Bool(true),
				MaxLength: DefaultDesktopMax,
				Timeout:   "10s",
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Status: StatusConfig{
			Addr: DefaultStatusAddr,
		},
	}
	return cfg
}

// ApplyDefaults fills zero values that have a sensible default. It never
// touches channel switches or credentials.
func (c *Config) ApplyDefaults() {
	s := &c.Source
	if strings.TrimSpace(s.URL) == "" {
		s.URL = DefaultSourceURL
	}
	if strings.TrimSpace(s.BaseURL) == "" {
		if u, err := url.Parse(s.URL); err == nil && u.Scheme != "" && u.Host != "" {
			s.BaseURL = u.Scheme + "://" + u.Host
		}
	}
	if s.Format == "" {
		s.Format = "html"
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.Timeout == "" {
		s.Timeout = "15s"
	}
	if s.MinTitleLength == 0 {
		s.MinTitleLength = 6
	}
	if s.ListSelector == "" {
		s.ListSelector = DefaultListSelector
	}
	if s.MaxBytes == 0 {
		s.MaxBytes = DefaultMaxBytes
	}

	if strings.TrimSpace(c.Poll.Schedule) == "" {
		c.Poll.Schedule = DefaultSchedule
	}
	if c.Poll.RetryBackoff == "" {
		c.Poll.RetryBackoff = "30s"
	}

	if c.Storage.Mode == "" {
		c.Storage.Mode = "durable"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" && c.Storage.Driver != "memory" {
		c.Storage.Path = DefaultStoragePath
	}

	n := &c.Notify
	if n.SendTimeout == "" {
		n.SendTimeout = "15s"
	}
	if n.Pace == "" {
		n.Pace = "1s"
	}
	if n.HistorySize == 0 {
		n.HistorySize = 100
	}
	if n.Email.SMTPServer == "" {
		n.Email.SMTPServer = DefaultSMTPServer
	}
	if n.Email.SMTPPort == 0 {
		n.Email.SMTPPort = DefaultSMTPPort
	}
	if n.Desktop.MaxLength == 0 {
		n.Desktop.MaxLength = DefaultDesktopMax
	}
	if n.Desktop.Timeout == "" {
		n.Desktop.Timeout = "10s"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Status.Addr == "" {
		c.Status.Addr = DefaultStatusAddr
	}
}
