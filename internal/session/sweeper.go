package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the background expiry pass once per configured sweep
// interval. Unlike request handling, the sweeper's own pass is never
// cancelable mid-run; only the per-session lock acquisition it performs
// has a bounded timeout.
type Sweeper struct {
	mgr  *Manager
	cron *cron.Cron
	once sync.Once
	log  *slog.Logger
}

// NewSweeper builds a Sweeper over mgr; the sweep interval is passed to Start.
func NewSweeper(mgr *Manager, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		mgr:  mgr,
		cron: cron.New(cron.WithSeconds()),
		log:  log,
	}
}

// Start schedules the sweep at the given interval (seconds) and begins
// running it in the background. Safe to call only once per Sweeper.
func (s *Sweeper) Start(ctx context.Context, intervalSeconds int) error {
	if intervalSeconds < 1 {
		intervalSeconds = 60
	}
	spec := cronEverySeconds(intervalSeconds)
	var startErr error
	s.once.Do(func() {
		_, startErr = s.cron.AddFunc(spec, s.sweep)
		if startErr != nil {
			return
		}
		s.cron.Start()
		go func() {
			<-ctx.Done()
			s.cron.Stop()
		}()
	})
	return startErr
}

// sweep destroys every session whose last_activity + timeout is in the
// past, acquiring each session's mutex (with a short timeout) first so a
// session in active use is never destroyed mid-request.
func (s *Sweeper) sweep() {
	now := s.mgr.clock.Now()

	s.mgr.mu.RLock()
	ids := make([]string, 0, len(s.mgr.sessions))
	for id := range s.mgr.sessions {
		ids = append(ids, id)
	}
	s.mgr.mu.RUnlock()

	for _, id := range ids {
		e, ok := s.mgr.lookup(id)
		if !ok {
			continue
		}
		if !e.record.Expired(now) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), lockAcquireTimeout)
		acquired := e.lock.lockContext(ctx, lockAcquireTimeout)
		cancel()
		if !acquired {
			s.log.Warn("session sweep: session busy, deferring expiry", "session_id", id)
			continue
		}
		expired := e.record.Expired(s.mgr.clock.Now())
		e.lock.unlock()
		if expired {
			s.mgr.remove(id)
			s.log.Info("session expired", "session_id", id)
		}
	}
}

// cronEverySeconds builds a seconds-resolution cron spec. For n >= 60 it
// fires every n seconds; below 60 it fires at each second of the minute that
// is a multiple of n, which is exactly every n seconds only when n divides 60.
func cronEverySeconds(n int) string {
	if n >= 60 {
		return "@every " + strconv.Itoa(n) + "s"
	}
	return "*/" + strconv.Itoa(n) + " * * * * *"
}
