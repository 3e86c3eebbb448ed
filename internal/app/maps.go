package app

import (
	"strings"

	"ticketwatch/internal/config"
	"ticketwatch/internal/fetch"
	"ticketwatch/internal/notifier"
	"ticketwatch/internal/parse"
	"ticketwatch/internal/status"
	"ticketwatch/internal/storage"
	logx "ticketwatch/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config, t config.Timings) storage.Config {
	sc := cfg.Storage
	return storage.Config{
		Mode:        strings.ToLower(strings.TrimSpace(sc.Mode)),
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: t.BusyTimeout,
	}
}

func mapFetchConfig(cfg *config.Config, t config.Timings) fetch.Config {
	return fetch.Config{
		Timeout:   t.FetchTimeout,
		MaxBytes:  cfg.Source.MaxBytes,
		UserAgent: cfg.Source.UserAgent,
	}
}

func mapParseConfig(cfg *config.Config) parse.Config {
	return parse.Config{
		Format:       cfg.Source.Format,
		ListSelector: cfg.Source.ListSelector,
	}
}

func mapNotifierConfig(cfg *config.Config, t config.Timings) notifier.Config {
	return notifier.Config{
		SendTimeout: t.SendTimeout,
		Parallel:    cfg.Notify.Parallel,
		HistorySize: cfg.Notify.HistorySize,
	}
}

func mapStatusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Addr:  strings.TrimSpace(cfg.Status.Addr),
		Token: strings.TrimSpace(cfg.Status.Token),
		Pprof: cfg.Status.Pprof,
	}
}
