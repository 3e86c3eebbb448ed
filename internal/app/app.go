package app

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/availability"
	"ticketwatch/internal/channel"
	"ticketwatch/internal/config"
	"ticketwatch/internal/entry"
	"ticketwatch/internal/eventbus"
	"ticketwatch/internal/fetch"
	"ticketwatch/internal/monitor"
	"ticketwatch/internal/notifier"
	"ticketwatch/internal/parse"
	"ticketwatch/internal/runtime/supervisor"
	"ticketwatch/internal/status"
	"ticketwatch/internal/storage"
	logx "ticketwatch/pkg/logx"
	"ticketwatch/pkg/systemd"
)

// Options are process-level inputs that do not live in the config file.
type Options struct {
	ConfigPath string
	Version    string

	// HTTPClient and Desktop replace the channel transports; nil uses the
	// real ones.
	HTTPClient *http.Client
	Desktop    channel.DesktopNotifier
}

type App struct {
	opts Options

	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	rec  *eventbus.Recorder

	store  storage.Store
	notif  *notifier.Service
	mon    *monitor.Service
	status *status.Server

	sd  systemd.Notifier
	sup *supervisor.Supervisor

	closeOnce sync.Once
	closeErr  error
}

// New loads the config, writing a default one if missing, and wires every
// component. Errors that must abort startup wrap apperr.ErrConfig.
func New(opts Options) (*App, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = "ticketwatch.yaml"
	}
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "config"))

	cfgm := config.NewManager(opts.ConfigPath, bootLog)
	cfg, _, err := cfgm.LoadOrInit()
	if err != nil {
		if !errors.Is(err, apperr.ErrConfig) {
			err = apperr.Config("load %s: %v", opts.ConfigPath, err)
		}
		return nil, err
	}
	if err := cfg.CheckChannels(); err != nil {
		return nil, err
	}
	timings, err := cfg.Timings()
	if err != nil {
		return nil, apperr.Config("%v", err)
	}
	schedule, err := config.ParseSchedule(cfg.Poll.Schedule)
	if err != nil {
		return nil, apperr.Config("%v", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()
	rec := eventbus.NewRecorder(cfg.Notify.HistorySize)

	store, err := storage.Open(mapStorageConfig(cfg, timings), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	fail := func(err error) (*App, error) {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	chans, err := channel.Build(cfg.Notify, channel.Deps{
		Timings: timings,
		Client:  opts.HTTPClient,
		Desktop: opts.Desktop,
		Log:     log.With(logx.String("comp", "channel")),
	})
	if err != nil {
		return fail(apperr.Config("%v", err))
	}
	notif := notifier.New(mapNotifierConfig(cfg, timings), chans, log.With(logx.String("comp", "notifier")), bus, store)

	parser, err := parse.New(mapParseConfig(cfg), log.With(logx.String("comp", "parse")))
	if err != nil {
		return fail(apperr.Config("%v", err))
	}
	norm, err := entry.NewNormalizer(entry.Options{
		BaseURL:        cfg.Source.BaseURL,
		MinTitleLength: cfg.Source.MinTitleLength,
	}, log.With(logx.String("comp", "entry")))
	if err != nil {
		return fail(apperr.Config("source.base_url: %v", err))
	}

	mon := monitor.New(monitor.Config{
		URL:          cfg.Source.URL,
		Schedule:     schedule,
		RetryBackoff: timings.RetryBackoff,
		MaxNotify:    cfg.Source.MaxNotify,
	}, monitor.Deps{
		Fetcher:    fetch.New(mapFetchConfig(cfg, timings), log.With(logx.String("comp", "fetch"))),
		Parser:     parser,
		Normalizer: norm,
		Store:      store,
		Dispatcher: notif,
	}, log.With(logx.String("comp", "monitor")), bus)

	a := &App{
		opts:  opts,
		cfgm:  cfgm,
		cfg:   cfg,
		log:   log,
		logs:  logSvc,
		bus:   bus,
		rec:   rec,
		store: store,
		notif: notif,
		mon:   mon,
	}
	if cfg.Status.Enabled {
		a.status = status.New(mapStatusConfig(cfg), status.Sources{
			Monitor:    mon.Status,
			Deliveries: notif.History,
			Events:     rec.Recent,
			Routines:   a.routines,
			Channels:   notif.Channels(),
		}, opts.Version, log.With(logx.String("comp", "status")))
	}

	log.Info("ticketwatch configured", logx.String("config", cfgm.Path()), logx.String("summary", cfg.String()))
	return a, nil
}

func (a *App) Config() *config.Config { return a.cfg }

// Check runs a single cycle and persists its snapshot.
func (a *App) Check(ctx context.Context) (monitor.CycleReport, error) {
	return a.mon.RunOnce(ctx)
}

// TestNotify sends one synthetic entry through every channel. It does not
// touch the snapshot.
func (a *App) TestNotify(ctx context.Context) notifier.Outcome {
	title := "ticketwatch 테스트 알림"
	link := a.cfg.Source.URL
	e := entry.Entry{
		ID:    entry.Fingerprint(title, link),
		Title: title,
		Link:  link,
		Tags:  []string{"test"},
	}
	return a.notif.Notify(ctx, e)
}

// WatchAvailability polls one detail page until it is no longer sold out and
// announces it once through the configured channels. The snapshot is not
// touched.
func (a *App) WatchAvailability(ctx context.Context, cfg availability.Config) (notifier.Outcome, error) {
	t, err := a.cfg.Timings()
	if err != nil {
		return notifier.Outcome{}, apperr.Config("%v", err)
	}
	w, err := availability.New(cfg,
		fetch.New(mapFetchConfig(a.cfg, t), a.log.With(logx.String("comp", "fetch"))),
		a.notif,
		a.log.With(logx.String("comp", "availability")),
	)
	if err != nil {
		return notifier.Outcome{}, apperr.Config("%v", err)
	}
	return w.Run(ctx)
}

// Close releases the store and log sinks. Run calls it on the way out.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.store.Close()
		if a.logs != nil {
			_ = a.logs.Close()
		}
	})
	return a.closeErr
}

func (a *App) routines() []supervisor.Stats {
	if a.sup == nil {
		return nil
	}
	return a.sup.Snapshot()
}
