package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/channel"
	"ticketwatch/internal/entry"
	"ticketwatch/internal/eventbus"
	"ticketwatch/internal/storage"
	logx "ticketwatch/pkg/logx"
)

type slot struct {
	ch  channel.Channel
	lim *rate.Limiter // nil when the channel is not paced
}

// Service dispatches entries to channels. It is safe for concurrent use, but
// the monitor calls it from one goroutine.
type Service struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	slots []slot

	hmu     sync.Mutex
	history []storage.DeliveryRecord
}

func New(cfg Config, channels []channel.Channel, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	s := &Service{cfg: cfg, log: log, bus: bus, store: store}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		sl := slot{ch: ch}
		if p, ok := ch.(channel.Paced); ok && p.Pace() > 0 {
			// Burst 1: the first send goes out at once, later ones wait.
			sl.lim = rate.NewLimiter(rate.Every(p.Pace()), 1)
		}
		s.slots = append(s.slots, sl)
	}
	s.seedHistory()
	return s
}

// seedHistory restores the history from a journal that can be read back, so
// the status page survives a restart.
func (s *Service) seedHistory() {
	r, ok := s.store.(storage.DeliveryReader)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	recs, err := r.RecentDeliveries(ctx, s.cfg.HistorySize)
	if err != nil {
		s.log.Warn("delivery history not restored", logx.Err(err))
		return
	}
	for i := len(recs) - 1; i >= 0; i-- {
		s.history = append(s.history, recs[i])
	}
}

// Channels lists the channel names in dispatch order.
func (s *Service) Channels() []string {
	out := make([]string, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl.ch.Name())
	}
	return out
}

// Dispatch notifies every entry in order and returns the totals.
func (s *Service) Dispatch(ctx context.Context, entries []entry.Entry) Report {
	var rep Report
	for _, e := range entries {
		o := s.Notify(ctx, e)
		rep.Entries++
		rep.add(o)
		s.log.Info("entry notified",
			logx.String("entry_id", e.ID),
			logx.String("title", e.Title),
			logx.Int("delivered", o.Delivered),
			logx.Int("channels", len(s.slots)),
		)
	}
	return rep
}

// Notify delivers one entry to every channel.
func (s *Service) Notify(ctx context.Context, e entry.Entry) Outcome {
	results := make([]channel.Outcome, len(s.slots))
	if s.cfg.Parallel && len(s.slots) > 1 {
		var g errgroup.Group
		for i := range s.slots {
			g.Go(func() error {
				results[i] = s.deliver(ctx, s.slots[i], e)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range s.slots {
			results[i] = s.deliver(ctx, s.slots[i], e)
		}
	}

	var o Outcome
	for _, r := range results {
		switch r {
		case channel.Delivered:
			o.Delivered++
		case channel.Skipped:
			o.Skipped++
		default:
			o.Failed++
		}
	}
	return o
}

func (s *Service) deliver(ctx context.Context, sl slot, e entry.Entry) channel.Outcome {
	name := sl.ch.Name()
	start := time.Now()

	var err error
	if sl.lim != nil && ready(sl.ch) {
		if werr := sl.lim.Wait(ctx); werr != nil {
			err = apperr.Transport(name+": pace", werr)
		}
	}
	if err == nil {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		err = safeDeliver(callCtx, sl.ch, e)
		cancel()
	}
	took := time.Since(start)
	out := channel.Classify(err)

	log := s.log.With(logx.String("channel", name), logx.String("entry_id", e.ID))
	ev := DeliveryEvent{Channel: name, EntryID: e.ID, Title: e.Title, TookMS: took.Milliseconds()}
	var evType string
	switch out {
	case channel.Delivered:
		evType = eventbus.NotifyDelivered
		log.Debug("delivered", logx.Duration("took", took))
	case channel.Skipped:
		evType = eventbus.NotifySkipped
		log.Debug("skipped")
	default:
		evType = eventbus.NotifyFailed
		ev.Error = err.Error()
		log.Warn("delivery failed", logx.Err(err), logx.Duration("took", took))
	}
	s.bus.Publish(eventbus.Event{Type: evType, Data: ev})

	rec := storage.DeliveryRecord{
		At:      start.UTC(),
		EntryID: e.ID,
		Title:   e.Title,
		Channel: name,
		Outcome: string(out),
		Error:   ev.Error,
		TookMS:  ev.TookMS,
	}
	s.appendHistory(rec)
	if s.store != nil {
		if err := s.store.AppendDelivery(context.WithoutCancel(ctx), rec); err != nil {
			log.Debug("delivery journal append failed", logx.Err(err))
		}
	}
	return out
}

func ready(ch channel.Channel) bool {
	r, ok := ch.(channel.Readier)
	return !ok || r.Ready()
}

// safeDeliver turns a panicking channel into a failed delivery.
func safeDeliver(ctx context.Context, ch channel.Channel, e entry.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Transport(ch.Name(), fmt.Errorf("panic: %v", r))
		}
	}()
	return ch.Deliver(ctx, e)
}

func (s *Service) appendHistory(r storage.DeliveryRecord) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, r)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
}

// History returns the most recent delivery outcomes, oldest first.
func (s *Service) History() []storage.DeliveryRecord {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]storage.DeliveryRecord(nil), s.history...)
}
