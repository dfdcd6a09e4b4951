package worker

import (
	"context"
	"fmt"
	"time"

	"noticeboard/internal/platform/metrics"
	"noticeboard/internal/platform/storage"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sweepLockKey = "noticeboard:sweeper:lock"
	sweepLockTTL = 10 * time.Minute
	// lookupBatch keeps each reference lookup well under the Postgres
	// bind parameter limit.
	lookupBatch = 500
)

var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

type FileLister interface {
	List() ([]storage.FileInfo, error)
	Delete(name string) error
}

// AttachmentIndex answers which stored names are still referenced by an
// attachment row.
type AttachmentIndex interface {
	ExistingFilenames(ctx context.Context, names []string) (map[string]struct{}, error)
}

// OrphanSweeper removes stored files that no attachment row references. Such
// files are left behind when linking an upload to its notice fails and the
// immediate cleanup also fails. Files younger than minAge are skipped so an
// upload that is still being linked is never taken.
type OrphanSweeper struct {
	rdb      *redis.Client
	files    FileLister
	index    AttachmentIndex
	metrics  *metrics.Metrics
	logger   *charmlog.Logger
	interval time.Duration
	minAge   time.Duration
	now      func() time.Time
}

// NewOrphanSweeper takes an optional Redis client. With one, a SET NX lock
// makes sure only one instance sweeps at a time.
func NewOrphanSweeper(rdb *redis.Client, files FileLister, index AttachmentIndex, m *metrics.Metrics, logger *charmlog.Logger, interval, minAge time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		rdb:      rdb,
		files:    files,
		index:    index,
		metrics:  m,
		logger:   logger,
		interval: interval,
		minAge:   minAge,
		now:      time.Now,
	}
}

// Start sweeps every interval until ctx is done. A non-positive interval
// disables the sweeper.
func (s *OrphanSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("orphan sweeper disabled")
		return
	}
	s.logger.Info("orphan sweeper started", "interval", s.interval, "min_age", s.minAge)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("orphan sweeper stopping")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("orphan sweep failed", "err", err)
			}
		}
	}
}

// SweepOnce runs a single pass and returns how many files it removed. It
// returns 0 without error when another instance holds the lock.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (int, error) {
	release, ok, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		s.logger.Debug("sweep skipped, lock held elsewhere")
		return 0, nil
	}
	defer release()

	files, err := s.files.List()
	if err != nil {
		return 0, fmt.Errorf("OrphanSweeper.SweepOnce: %w", err)
	}
	cutoff := s.now().Add(-s.minAge)
	var candidates []string
	for _, f := range files {
		if !f.ModTime.After(cutoff) {
			candidates = append(candidates, f.Name)
		}
	}

	removed := 0
	for start := 0; start < len(candidates); start += lookupBatch {
		end := min(start+lookupBatch, len(candidates))
		batch := candidates[start:end]
		referenced, err := s.index.ExistingFilenames(ctx, batch)
		if err != nil {
			return removed, fmt.Errorf("OrphanSweeper.SweepOnce: %w", err)
		}
		for _, name := range batch {
			if _, ok := referenced[name]; ok {
				continue
			}
			if err := s.files.Delete(name); err != nil {
				s.logger.Warn("could not remove orphaned file", "stored", name, "err", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("removed orphaned attachment files", "count", removed)
	}
	s.metrics.OrphansSwept(removed)
	return removed, nil
}

func (s *OrphanSweeper) acquire(ctx context.Context) (func(), bool, error) {
	if s.rdb == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, sweepLockKey, token, sweepLockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		if err := releaseLock.Run(context.WithoutCancel(ctx), s.rdb, []string{sweepLockKey}, token).Err(); err != nil {
			s.logger.Warn("failed to release sweep lock", "err", err)
		}
	}, true, nil
}
