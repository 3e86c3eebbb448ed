package app

import (
	"context"
	"strings"
	"time"

	"ticketwatch/internal/config"
	"ticketwatch/internal/eventbus"
	"ticketwatch/internal/monitor"
	"ticketwatch/internal/runtime/supervisor"
	logx "ticketwatch/pkg/logx"
	"ticketwatch/pkg/systemd"
)

// Run starts the poll loop and its helpers and blocks until ctx is done.
// A cycle in flight when ctx ends is allowed to finish.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	sup := a.sup

	sup.Go("events.record", func(c context.Context) error {
		a.rec.Run(c, a.bus)
		return nil
	})
	sup.Go("events.log", a.logEvents)
	sup.Go("systemd.watchdog", a.watchdog)
	sup.GoRestart("monitor", a.mon.Run, time.Second, time.Minute)
	sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
	sup.Go("config.reload", a.reloadLoop)
	if a.status != nil {
		sup.GoRestart("status.http", a.status.Serve, 500*time.Millisecond, 10*time.Second)
	}

	if err := a.sd.Ready(); err != nil {
		a.log.Debug("sd_notify READY failed", logx.Err(err))
	}
	a.log.Info("ticketwatch started",
		logx.String("url", a.cfg.Source.URL),
		logx.String("schedule", a.cfg.Poll.Schedule),
		logx.Any("channels", a.notif.Channels()),
	)

	<-ctx.Done()
	a.stop()
	return nil
}

func (a *App) stop() {
	a.log.Info("stopping")
	_ = a.sd.Stopping()

	step := func(name string, fn func() error) {
		start := time.Now()
		if err := fn(); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
			return
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	// No deadline: the cycle in flight runs on a detached context and bounds
	// each call with its own timeout. Its snapshot must be saved before exit.
	step("supervisor", func() error { return a.sup.Stop(context.Background()) })
	// The store is closed only once the monitor has returned.
	step("storage", a.Close)

	a.log.Info("stopped")
}

// watchdog pings systemd after each cycle. With WatchdogSec set it also
// pings on a timer while the loop is not overdue.
func (a *App) watchdog(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(8)
	defer unsub()

	interval := systemd.WatchdogInterval()
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if e.Type != eventbus.CycleCompleted && e.Type != eventbus.CycleFailed {
				continue
			}
			_ = a.sd.Watchdog()
			if rep, ok := e.Data.(monitor.CycleReport); ok {
				_ = a.sd.Status("last cycle: %d entries, %d new, %d delivered", rep.Valid, rep.Novel, rep.Delivery.Delivered)
			}
		case now := <-tick:
			next := a.mon.Status().NextCycle
			if next.IsZero() || now.Sub(next) < interval {
				_ = a.sd.Watchdog()
			}
		}
	}
}

func (a *App) logEvents(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// reloadLoop applies config file changes. Only logging is live; any other
// changed section is reported as needing a restart.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case newCfg, ok := <-sub:
			if !ok {
				return nil
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyReload(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyReload(old, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(old, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	var restart []string
	for _, s := range sections {
		if !config.LiveSections[s] {
			restart = append(restart, s)
		}
	}
	a.logs.Apply(mapLogConfig(next))

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if len(restart) > 0 {
		a.log.Warn("config change needs a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: sections})
}
