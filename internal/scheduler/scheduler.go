// Package scheduler runs one independent polling loop per source.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"streamwatch/internal/detect"
	"streamwatch/internal/fetcher"
	"streamwatch/internal/metrics"
	"streamwatch/internal/model"
	"streamwatch/internal/notify"
	"streamwatch/internal/storage"
)

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrUnknownSource is returned by Trigger for a name with no loop.
	ErrUnknownSource = errors.New("unknown source")
)

// Fetcher returns the current items of a source.
type Fetcher interface {
	Fetch(ctx context.Context, src model.Source) ([]model.Item, error)
}

// Dispatcher delivers new items and returns the updated last-seen set.
type Dispatcher interface {
	Dispatch(ctx context.Context, src model.Source, current model.IDSet, res detect.Result, items []model.Item) (model.IDSet, notify.Report)
}

// CycleError wraps an unexpected failure inside a cycle.
type CycleError struct {
	Source string
	Err    error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %s: %v", e.Source, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// State is the position of a source loop in its cycle.
type State string

// Loop states.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateCooldown State = "cooldown"
	StateStopped  State = "stopped"
)

// SourceStatus is a snapshot of one loop for status reporting.
type SourceStatus struct {
	Name      string
	Kind      model.SourceKind
	State     State
	Interval  time.Duration
	LastRun   time.Time
	LastError string
	Tracked   int
	Cycles    int
	Sent      int
	Failed    int
}

type loop struct {
	src     model.Source
	seen    model.IDSet // owned by the loop goroutine
	trigger chan struct{}
	status  SourceStatus // guarded by Scheduler.mu
}

// Scheduler periodically polls sources and dispatches notifications.
type Scheduler struct {
	store      storage.Store
	fetcher    Fetcher
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        *slog.Logger
	cooldown   time.Duration

	mu      sync.Mutex
	started bool
	loops   []*loop
	byName  map[string]*loop
	wg      sync.WaitGroup
}

// New creates a Scheduler for sources. Loops start with Start.
func New(sources []model.Source, store storage.Store, f Fetcher, d Dispatcher, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		store:      store,
		fetcher:    f,
		dispatcher: d,
		log:        log,
		cooldown:   time.Minute,
		byName:     make(map[string]*loop, len(sources)),
	}
	for _, src := range sources {
		l := &loop{
			src:     src,
			trigger: make(chan struct{}, 1),
			status: SourceStatus{
				Name:     src.Name,
				Kind:     src.Kind,
				State:    StateIdle,
				Interval: src.Interval,
			},
		}
		s.loops = append(s.loops, l)
		s.byName[src.Name] = l
	}
	return s
}

// SetCooldown overrides the default 1-minute extra wait after a failed cycle.
func (s *Scheduler) SetCooldown(d time.Duration) {
	s.cooldown = d
}

// SetMetrics enables instrumentation.
func (s *Scheduler) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Start loads the last-seen state of every source and starts its loop.
// Loops stop when ctx is cancelled; use Wait to block until they exit.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	for _, l := range s.loops {
		seen, err := s.store.Load(ctx, l.src.Name)
		if err != nil {
			return fmt.Errorf("load state of %s: %w", l.src.Name, err)
		}
		seen = l.src.NormalizeIDs(seen)
		l.seen = seen
		l.status.Tracked = seen.Len()
		s.metrics.Tracked(l.src.Name, seen.Len())
	}

	s.started = true
	for _, l := range s.loops {
		s.wg.Add(1)
		go s.run(ctx, l)
	}
	s.log.Info("scheduler started", "sources", len(s.loops))
	return nil
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Trigger asks the loop of source to run a cycle now. A pending trigger
// is not queued twice.
func (s *Scheduler) Trigger(source string) error {
	l, ok := s.byName[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	select {
	case l.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Status returns a snapshot of every loop in configuration order.
func (s *Scheduler) Status() []SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SourceStatus, 0, len(s.loops))
	for _, l := range s.loops {
		out = append(out, l.status)
	}
	return out
}

func (s *Scheduler) setState(l *loop, st State) {
	s.mu.Lock()
	l.status.State = st
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context, l *loop) {
	defer s.wg.Done()
	defer s.setState(l, StateStopped)

	log := s.log.With("source", l.src.Name)
	for {
		s.setState(l, StateRunning)
		start := time.Now()
		rep, err := s.runCycle(ctx, l)
		if ctx.Err() != nil {
			return
		}

		outcome, cooldown := s.classify(log, rep, err)
		s.metrics.ObserveCycle(l.src.Name, outcome, time.Since(start))
		s.record(l, start, rep, err)

		wait := l.src.Interval
		if cooldown {
			s.setState(l, StateCooldown)
			wait += s.cooldown
		} else {
			s.setState(l, StateIdle)
		}

		if !s.sleep(ctx, l, wait) {
			return
		}
	}
}

// classify logs the outcome of a cycle and reports whether the loop
// should cool down before the next one.
func (s *Scheduler) classify(log *slog.Logger, rep notify.Report, err error) (string, bool) {
	var dispatchErr *notify.DispatchError
	switch {
	case err == nil:
		if rep.New > 0 || rep.Pruned > 0 {
			log.Info("cycle finished", "new", rep.New, "sent", rep.Sent, "pruned", rep.Pruned)
		} else {
			log.Debug("cycle finished, nothing new")
		}
		return metrics.OutcomeOK, false
	case errors.Is(err, fetcher.ErrNoData):
		log.Debug("no data this cycle")
		return metrics.OutcomeNoData, false
	case errors.Is(err, fetcher.ErrFetch):
		log.Warn("fetch failed, cycle abandoned", "error", err)
		return metrics.OutcomeFetchErr, true
	case errors.As(err, &dispatchErr):
		log.Warn("cycle finished with errors", "sent", rep.Sent, "failed", rep.Failed, "save_errors", rep.SaveErrors)
		return metrics.OutcomeError, dispatchErr.SaveErrors > 0
	default:
		log.Error("cycle failed", "error", err)
		return metrics.OutcomeError, true
	}
}

func (s *Scheduler) record(l *loop, start time.Time, rep notify.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.status.LastRun = start
	l.status.LastError = ""
	if err != nil {
		l.status.LastError = err.Error()
	}
	l.status.Cycles++
	l.status.Sent += rep.Sent
	l.status.Failed += rep.Failed
	l.status.Tracked = l.seen.Len()
}

// sleep waits for d, a trigger or cancellation. It returns false once ctx
// is done.
func (s *Scheduler) sleep(ctx context.Context, l *loop, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-l.trigger:
		return true
	case <-timer.C:
		return true
	}
}

// runCycle fetches a snapshot, computes the new items and dispatches
// them. A panic is converted into a *CycleError.
func (s *Scheduler) runCycle(ctx context.Context, l *loop) (rep notify.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in cycle", "source", l.src.Name, "panic", r, "stack", string(debug.Stack()))
			err = &CycleError{Source: l.src.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	items, err := s.fetcher.Fetch(ctx, l.src)
	prune := l.src.Prunes()
	switch {
	case errors.Is(err, fetcher.ErrTruncated):
		// Streams past the last page are unknown, not ended.
		s.log.Warn("snapshot truncated, nothing pruned", "source", l.src.Name, "items", len(items))
		prune = false
	case err != nil:
		return rep, err
	}

	res := detect.Diff(detect.IDs(items), l.seen, l.src.Ignore, prune)
	fresh := detect.Select(items, res.New)
	s.metrics.ObserveSnapshot(l.src.Name, len(items), len(fresh))

	seen, rep := s.dispatcher.Dispatch(ctx, l.src, l.seen, res, fresh)
	l.seen = seen
	return rep, rep.Err()
}
