package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Timings are the parsed duration fields of a Config.
type Timings struct {
	FetchTimeout   time.Duration
	RetryBackoff   time.Duration
	SendTimeout    time.Duration
	Pace           time.Duration
	DesktopTimeout time.Duration
	BusyTimeout    time.Duration
}

func (c *Config) Timings() (Timings, error) {
	var (
		t   Timings
		err error
	)
	if t.FetchTimeout, err = ParseDurationOrDefault("source.timeout", c.Source.Timeout, 15*time.Second); err != nil {
		return Timings{}, err
	}
	if t.RetryBackoff, err = ParseDurationOrDefault("poll.retry_backoff", c.Poll.RetryBackoff, 30*time.Second); err != nil {
		return Timings{}, err
	}
	if t.SendTimeout, err = ParseDurationOrDefault("notify.send_timeout", c.Notify.SendTimeout, 15*time.Second); err != nil {
		return Timings{}, err
	}
	// "0s" disables pacing, so no default here.
	if t.Pace, err = ParseDurationField("notify.pace", c.Notify.Pace); err != nil {
		return Timings{}, err
	}
	if t.DesktopTimeout, err = ParseDurationOrDefault("notify.desktop.timeout", c.Notify.Desktop.Timeout, 10*time.Second); err != nil {
		return Timings{}, err
	}
	if t.BusyTimeout, err = ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second); err != nil {
		return Timings{}, err
	}
	return t, nil
}
