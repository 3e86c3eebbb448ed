package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/entry"
	"ticketwatch/internal/eventbus"
	"ticketwatch/internal/notifier"
	"ticketwatch/internal/storage"
	logx "ticketwatch/pkg/logx"
)

const (
	DefaultInterval     = 5 * time.Minute
	DefaultRetryBackoff = 30 * time.Second
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Parser interface {
	Parse(body []byte) ([]entry.Raw, error)
}

type Normalizer interface {
	NormalizeAll(raws []entry.Raw) []entry.Entry
}

type Dispatcher interface {
	Dispatch(ctx context.Context, entries []entry.Entry) notifier.Report
}

// Schedule yields the next tick after a given time. cron.Schedule fits.
type Schedule interface {
	Next(time.Time) time.Time
}

type Config struct {
	URL          string
	Schedule     Schedule
	RetryBackoff time.Duration
	// MaxNotify bounds dispatched entries per cycle; 0 means no bound.
	MaxNotify int
}

type Deps struct {
	Fetcher    Fetcher
	Parser     Parser
	Normalizer Normalizer
	Store      storage.Store
	Dispatcher Dispatcher
}

// CycleReport describes one completed or failed cycle.
type CycleReport struct {
	Started    time.Time       `json:"started"`
	TookMS     int64           `json:"took_ms"`
	Raw        int             `json:"raw"`
	Valid      int             `json:"valid"`
	Novel      int             `json:"novel"`
	Suppressed int             `json:"suppressed,omitempty"`
	Bootstrap  bool            `json:"bootstrap,omitempty"`
	Snapshot   int             `json:"snapshot"`
	Saved      bool            `json:"saved"`
	Delivery   notifier.Report `json:"delivery"`
	Err        string          `json:"err,omitempty"`
}

// Status is what the status page shows about the loop.
type Status struct {
	Ready        bool         `json:"ready"`
	Cycles       uint64       `json:"cycles"`
	Failures     uint64       `json:"failures"`
	SnapshotSize int          `json:"snapshot_size"`
	LastUpdate   time.Time    `json:"last_update,omitempty"`
	Durable      bool         `json:"durable"`
	Last         *CycleReport `json:"last,omitempty"`
	NextCycle    time.Time    `json:"next_cycle,omitempty"`
}

// Service is the poll loop: Idle -> Cycle -> Idle. One cycle at a time.
type Service struct {
	cfg  Config
	deps Deps
	log  logx.Logger
	bus  eventbus.Bus

	cycleMu sync.Mutex // serializes RunCycle

	mu         sync.RWMutex
	loaded     bool
	previous   IDSet
	lastUpdate time.Time
	last       *CycleReport
	cycles     uint64
	failures   uint64
	next       time.Time
}

func New(cfg Config, deps Deps, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	if cfg.Schedule == nil {
		cfg.Schedule = cron.Every(DefaultInterval)
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemory()
	}
	return &Service{cfg: cfg, deps: deps, log: log, bus: bus, previous: IDSet{}}
}

// Load reads the persisted snapshot once. Unreadable state is logged and
// treated as empty, so the next cycle bootstraps.
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	s.loaded = true

	snap, err := s.deps.Store.Load(ctx)
	if err != nil {
		s.log.Warn("snapshot load failed; starting empty", logx.Err(err))
		return
	}
	s.previous = NewIDSet(snap.IDs...)
	s.lastUpdate = snap.LastUpdate
	s.log.Info("snapshot loaded",
		logx.Int("ids", len(s.previous)),
		logx.Bool("durable", s.deps.Store.Durable()),
		logx.Time("last_update", snap.LastUpdate),
	)
}

// Run loops until ctx is done. Cancellation interrupts the idle wait at once;
// a cycle already running finishes on a detached context.
func (s *Service) Run(ctx context.Context) error {
	s.Load(ctx)
	s.log.Info("monitor started", logx.String("url", s.cfg.URL))

	for {
		if ctx.Err() != nil {
			s.log.Info("monitor stopped")
			return nil
		}
		_, err := s.guardedCycle(context.WithoutCancel(ctx))

		now := time.Now()
		wait := s.cfg.Schedule.Next(now).Sub(now)
		if unexpected(err) {
			wait = s.cfg.RetryBackoff
			s.log.Warn("cycle aborted; backing off", logx.Err(err), logx.Duration("backoff", wait))
		}
		if wait < 0 {
			wait = 0
		}
		s.mu.Lock()
		s.next = now.Add(wait)
		s.mu.Unlock()

		if !sleepCtx(ctx, wait) {
			s.log.Info("monitor stopped")
			return nil
		}
	}
}

// RunOnce loads the snapshot, runs a single cycle and returns.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	s.Load(ctx)
	return s.guardedCycle(ctx)
}

func (s *Service) guardedCycle(ctx context.Context) (rep CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
			s.log.Error("cycle panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			rep.Err = err.Error()
			s.finish(rep, err)
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle performs fetch, parse, normalize, diff, dispatch and persist.
// Fetch and parse failures leave the snapshot untouched.
func (s *Service) RunCycle(ctx context.Context) (CycleReport, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	rep := CycleReport{Started: time.Now()}
	fail := func(err error) (CycleReport, error) {
		rep.TookMS = time.Since(rep.Started).Milliseconds()
		rep.Err = err.Error()
		s.mu.RLock()
		rep.Snapshot = len(s.previous)
		s.mu.RUnlock()
		s.log.Warn("cycle failed", logx.Err(err), logx.Int64("took_ms", rep.TookMS))
		s.finish(rep, err)
		return rep, err
	}

	body, err := s.deps.Fetcher.Fetch(ctx, s.cfg.URL)
	if err != nil {
		if !errors.Is(err, apperr.ErrTransport) {
			err = apperr.Transport("fetch", err)
		}
		return fail(err)
	}
	raws, err := s.deps.Parser.Parse(body)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", apperr.ErrParseEmpty, err))
	}
	rep.Raw = len(raws)

	current := s.deps.Normalizer.NormalizeAll(raws)
	rep.Valid = len(current)
	if len(current) == 0 {
		return fail(fmt.Errorf("%w: %d records, none valid", apperr.ErrParseEmpty, len(raws)))
	}

	s.mu.RLock()
	previous := s.previous
	s.mu.RUnlock()

	diff := Diff(previous, current)
	rep.Bootstrap = diff.Bootstrap
	rep.Novel = len(diff.Novel)

	send := diff.Novel
	if s.cfg.MaxNotify > 0 && len(send) > s.cfg.MaxNotify {
		for _, e := range send[s.cfg.MaxNotify:] {
			s.log.Info("notification suppressed by max_notify", logx.String("entry_id", e.ID), logx.String("title", e.Title))
		}
		rep.Suppressed = len(send) - s.cfg.MaxNotify
		send = send[:s.cfg.MaxNotify]
	}

	switch {
	case diff.Bootstrap:
		s.log.Info("baseline recorded", logx.Int("entries", len(current)))
	case len(send) == 0:
		s.log.Debug("no new entries", logx.Int("entries", len(current)))
	default:
		s.log.Info("new entries found", logx.Int("novel", len(diff.Novel)), logx.Int("notify", len(send)))
		rep.Delivery = s.deps.Dispatcher.Dispatch(ctx, send)
	}

	now := time.Now()
	s.mu.Lock()
	s.previous = diff.Current
	s.lastUpdate = now
	s.mu.Unlock()
	rep.Snapshot = len(diff.Current)

	var saveErr error
	if err := s.deps.Store.Save(ctx, storage.Snapshot{IDs: diff.Current.Sorted(), LastUpdate: now}); err != nil {
		if !errors.Is(err, apperr.ErrPersistence) {
			err = apperr.Persistence("save snapshot", err)
		}
		saveErr = err
		s.log.Warn("snapshot save failed; next cycle retries", logx.Err(err))
	} else {
		rep.Saved = true
	}

	rep.TookMS = time.Since(rep.Started).Milliseconds()
	if saveErr != nil {
		rep.Err = saveErr.Error()
	}
	s.log.Info("cycle done",
		logx.Int("valid", rep.Valid),
		logx.Int("novel", rep.Novel),
		logx.Int("delivered", rep.Delivery.Delivered),
		logx.Int("snapshot", rep.Snapshot),
		logx.Int64("took_ms", rep.TookMS),
	)
	s.finish(rep, saveErr)
	return rep, saveErr
}

func (s *Service) finish(rep CycleReport, err error) {
	s.mu.Lock()
	s.cycles++
	if err != nil {
		s.failures++
	}
	r := rep
	s.last = &r
	s.mu.Unlock()

	typ := eventbus.CycleCompleted
	if err != nil {
		typ = eventbus.CycleFailed
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: rep})
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Ready:        s.cycles > 0,
		Cycles:       s.cycles,
		Failures:     s.failures,
		SnapshotSize: len(s.previous),
		LastUpdate:   s.lastUpdate,
		Durable:      s.deps.Store.Durable(),
		NextCycle:    s.next,
	}
	if s.last != nil {
		r := *s.last
		st.Last = &r
	}
	return st
}

// unexpected reports errors outside the handled taxonomy; those wait
// RetryBackoff instead of the normal schedule.
func unexpected(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, apperr.ErrTransport) &&
		!errors.Is(err, apperr.ErrParseEmpty) &&
		!errors.Is(err, apperr.ErrPersistence)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
