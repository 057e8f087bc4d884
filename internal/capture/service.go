// Package capture is the entry point collaborators call: submit one record,
// or read the per-category statistics. Each call opens and closes its own
// remote session.
package capture

import (
	"context"
	"time"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/lock"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/metrics"
	"github.com/gea-smc/gea/internal/notify"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/stats"
	"github.com/gea-smc/gea/internal/store"
)

// releaseTimeout bounds lock release, which runs even after ctx is cancelled.
const releaseTimeout = 10 * time.Second

// Conn is an open remote session.
type Conn interface {
	remote.Executor
	Close() error
}

// ConnectFunc opens a session for one operation.
type ConnectFunc func(ctx context.Context) (Conn, error)

// Notifier sends the post-append notice.
type Notifier interface {
	Notify(ctx context.Context, c record.Category, content string, at time.Time) error
}

// Phase names reported to an Observer.
const (
	PhaseConnect = "Connecting"
	PhaseLock    = "Acquiring lock"
	PhaseAppend  = "Saving record"
	PhaseNotify  = "Sending notice"
	PhaseCount   = "Counting records"
)

// Observer is told when each phase of an operation starts and ends.
type Observer interface {
	PhaseStarted(name string)
	PhaseFinished(name string, d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) PhaseStarted(string)                        {}
func (noopObserver) PhaseFinished(string, time.Duration, error) {}

// Result describes a successful submission.
type Result struct {
	Path  string
	Entry record.Entry

	// Notified is true when a notice was sent.
	Notified bool
	// NotifyErr is set when the notice failed. The record is still saved.
	NotifyErr error
}

// Service runs submissions and statistics against the configured host.
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Metrics
	connect  ConnectFunc
	locker   lock.Locker
	notifier Notifier
	store    *store.Store
	stats    *stats.Aggregator
	observer Observer
	now      func() time.Time

	lockerSet   bool
	notifierSet bool
}

// Option configures a Service.
type Option func(*Service)

// WithConnect replaces the session opener.
func WithConnect(f ConnectFunc) Option {
	return func(s *Service) { s.connect = f }
}

// WithLocker replaces the lock manager. nil disables locking.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
		s.lockerSet = true
	}
}

// WithNotifier replaces the notifier. nil disables notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
		s.notifierSet = true
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithObserver reports phase progress to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a Service from cfg. The defaults dial cfg.Remote, lock when
// cfg.Lock.Enabled, and mail through cfg.SMTP.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		log:      logger.Noop(),
		observer: noopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.connect == nil {
		s.connect = func(ctx context.Context) (Conn, error) {
			sess, err := remote.Connect(ctx, cfg, remote.WithLogger(s.log), remote.WithMetrics(s.metrics))
			if err != nil {
				return nil, err
			}
			return sess, nil
		}
	}
	if !s.lockerSet && cfg.Lock.Enabled {
		s.locker = lock.NewManager(cfg.Lock, s.log, s.metrics)
	}
	if !s.notifierSet {
		s.notifier = notify.New(cfg, notify.WithLogger(s.log), notify.WithMetrics(s.metrics))
	}

	s.store = store.New(s.log)
	s.stats = stats.NewAggregator(cfg.Paths(), cfg.Stats.Concurrency, s.log)
	return s
}

// Submit validates and appends one record, then sends the notice.
//
// Validation errors are returned before any connection is made. A failed
// notice does not fail the submission; it is reported in Result.NotifyErr.
func (s *Service) Submit(ctx context.Context, c record.Category, content string) (*Result, error) {
	entry, err := record.NewEntry(c, content, s.now())
	if err != nil {
		return nil, err
	}

	path := s.cfg.Path(c)
	err = s.append(ctx, path, entry)
	s.metrics.RecordAppend(c.String(), err)
	if err != nil {
		return nil, err
	}
	s.log.Info("Saved %s record to %s", c, path)

	res := &Result{Path: path, Entry: entry}
	if s.notifier == nil {
		return res, nil
	}
	notify := func() error {
		return s.notifier.Notify(ctx, c, entry.Content(), entry.Timestamp())
	}
	if !enabled(s.notifier) {
		// Still called so the disabled outcome is recorded.
		_ = notify()
		return res, nil
	}
	if err := s.phase(PhaseNotify, notify); err != nil {
		res.NotifyErr = err
		return res, nil
	}
	res.Notified = true
	return res, nil
}

// phase runs fn between the observer's start and finish callbacks.
func (s *Service) phase(name string, fn func() error) error {
	s.observer.PhaseStarted(name)
	start := time.Now()
	err := fn()
	s.observer.PhaseFinished(name, time.Since(start), err)
	return err
}

func (s *Service) open(ctx context.Context) (Conn, error) {
	var conn Conn
	err := s.phase(PhaseConnect, func() error {
		var err error
		conn, err = s.connect(ctx)
		return err
	})
	return conn, err
}

func (s *Service) append(ctx context.Context, path string, entry record.Entry) error {
	conn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.log.Debug("Closing session: %v", cerr)
		}
	}()

	if s.locker != nil {
		var handle lock.Handle
		err := s.phase(PhaseLock, func() error {
			var err error
			handle, err = s.locker.Acquire(ctx, conn, path)
			return err
		})
		if err != nil {
			return err
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if rerr := handle.Release(rctx); rerr != nil {
				s.log.Warn("Releasing lock for %s: %v", path, rerr)
			}
		}()
	}

	return s.phase(PhaseAppend, func() error {
		if err := s.store.EnsureFile(ctx, conn, path); err != nil {
			return err
		}
		return s.store.Append(ctx, conn, path, entry)
	})
}

// Stats counts the records of every category.
func (s *Service) Stats(ctx context.Context) (stats.Snapshot, error) {
	snap, err := s.collect(ctx)
	if err != nil {
		s.metrics.RecordStats(nil, err)
		return stats.Snapshot{}, err
	}
	s.metrics.RecordStats(snap.ByKey(), nil)
	return snap, nil
}

func (s *Service) collect(ctx context.Context) (stats.Snapshot, error) {
	conn, err := s.open(ctx)
	if err != nil {
		return stats.Snapshot{}, err
	}
	defer conn.Close()

	var snap stats.Snapshot
	err = s.phase(PhaseCount, func() error {
		var err error
		snap, err = s.stats.Collect(ctx, conn)
		return err
	})
	return snap, err
}

// Template returns the suggested input for a category key.
func Template(key string) (string, error) {
	c, err := record.ParseCategory(key)
	if err != nil {
		return "", err
	}
	return c.Template(), nil
}

// enabled reports whether n will actually send anything.
func enabled(n Notifier) bool {
	if e, ok := n.(interface{ Enabled() bool }); ok {
		return e.Enabled()
	}
	return true
}
