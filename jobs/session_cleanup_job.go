package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpiredSessionDeleter removes sessions that expired before now.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionCleanupJob periodically deletes expired server-side sessions.
type SessionCleanupJob struct {
	sessions ExpiredSessionDeleter
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSessionCleanupJob creates a new session cleanup job
func NewSessionCleanupJob(sessions ExpiredSessionDeleter, interval time.Duration, log logrus.FieldLogger) *SessionCleanupJob {
	return &SessionCleanupJob{
		sessions: sessions,
		interval: interval,
		log:      log.WithField("job", "session_cleanup"),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then on every tick until Stop.
func (j *SessionCleanupJob) Start() {
	j.log.WithField("interval", j.interval.String()).Info("session cleanup job started")

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.cleanup()
		for {
			select {
			case <-ticker.C:
				j.cleanup()
			case <-j.done:
				j.log.Info("session cleanup job stopped")
				return
			}
		}
	}()
}

// Stop ends the job and waits for a running cleanup to finish. It is safe to
// call more than once.
func (j *SessionCleanupJob) Stop() {
	j.once.Do(func() { close(j.done) })
	j.wg.Wait()
}

func (j *SessionCleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.log.WithError(err).Error("session cleanup failed")
		return
	}
	j.log.WithField("deleted", n).Debug("session cleanup completed")
}
