package config

import (
	"reflect"
	"strings"

	logx "ticketwatch/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets (webhook, tokens, passwords) are
// reported only as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Source, newCfg.Source) {
		changed = append(changed, "source")
		attrs = append(attrs,
			logx.String("source.url", newCfg.Source.URL),
			logx.String("source.format", newCfg.Source.Format),
		)
	}
	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs, logx.String("poll.schedule", strings.TrimSpace(newCfg.Poll.Schedule)))
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.mode", newCfg.Storage.Mode),
			logx.String("storage.driver", newCfg.Storage.Driver),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.String("notify.channels", strings.Join(newCfg.EnabledChannels(), ",")),
			logx.Bool("notify.discord.webhook_set", newCfg.Notify.Discord.Configured()),
			logx.Bool("notify.telegram.token_set", strings.TrimSpace(newCfg.Notify.Telegram.BotToken) != ""),
			logx.Bool("notify.email.password_set", strings.TrimSpace(newCfg.Notify.Email.SenderPassword) != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
		attrs = append(attrs,
			logx.Bool("status.enabled", newCfg.Status.Enabled),
			logx.String("status.addr", newCfg.Status.Addr),
			logx.Bool("status.token_set", newCfg.Status.Token != ""),
			logx.Bool("status.pprof", newCfg.Status.Pprof),
		)
	}
	return changed, attrs
}

// LiveSections are the sections a running process applies on reload. The
// others need a restart.
var LiveSections = map[string]bool{"logging": true}
