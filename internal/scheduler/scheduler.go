package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionStore removes persisted sessions whose token expired before the cutoff.
type SessionStore interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler periodically sweeps expired sessions out of the session store
type Scheduler struct {
	store    SessionStore
	logger   *logrus.Logger
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	jobMutex sync.Mutex
}

// NewScheduler creates a scheduler that sweeps every interval
func NewScheduler(store SessionStore, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return &Scheduler{
		store:    store,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	s.Sweep(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep deletes expired sessions once and reports how many were removed
func (s *Scheduler) Sweep(ctx context.Context) int64 {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	removed, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Failed to sweep expired sessions")
		return 0
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Swept expired sessions")
	} else {
		s.logger.Debug("No expired sessions to sweep")
	}
	return removed
}

// Stop gracefully stops the scheduler and waits for a running sweep
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}
