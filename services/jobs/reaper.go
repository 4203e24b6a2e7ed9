package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/services/metrics"
)

// Reaper deletes the objects left under the trash prefix for longer than the retention.
type Reaper struct {
	storage   core.FileStorage
	prefix    string
	retention time.Duration
	logger    core.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewReaper(storage core.FileStorage, conf core.StorageConfig, logger core.Logger, m *metrics.Metrics) *Reaper {
	return &Reaper{
		storage:   storage,
		prefix:    conf.ReaperPrefix,
		retention: time.Duration(conf.RetentionDays) * 24 * time.Hour,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Run returns the number of deleted objects.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	if r.prefix == "" {
		return 0, errors.New("reaper prefix is empty")
	}
	objs, err := r.storage.List(ctx, r.prefix)
	if err != nil {
		return 0, err
	}
	threshold := r.now().Add(-r.retention)
	var stale []string
	for _, o := range objs {
		if o.LastModified.Before(threshold) {
			stale = append(stale, o.Key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err = r.storage.Delete(ctx, stale...); err != nil {
		return 0, err
	}
	r.logger.Info(fmt.Sprintf("reaper: deleted %d/%d objects under %q", len(stale), len(objs), r.prefix))
	if r.metrics != nil {
		r.metrics.StorageObjectsReaped.Add(float64(len(stale)))
	}
	return len(stale), nil
}
