// Package jobs runs the scheduled maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/services/metrics"
)

const jobTimeout = 4 * time.Minute

// CertificateIssuer backfills the certificates of completed courses.
type CertificateIssuer interface {
	IssueMissingCertificates(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	logger  core.Logger
	metrics *metrics.Metrics
}

func NewScheduler(logger core.Logger, m *metrics.Metrics) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		metrics: m,
	}
}

// Add schedules fn under name. Each run gets its own timeout.
func (s *Scheduler) Add(schedule, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		err := fn(ctx)
		if err != nil {
			s.logger.Error(fmt.Sprintf("job %s: %+v", name, err), err)
		}
		if s.metrics != nil {
			s.metrics.JobDone(name, err)
		}
	})
	return errors.Wrapf(err, "scheduling %s (%q)", name, schedule)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for the running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Register schedules the storage reaper and the certificate backfill.
func Register(s *Scheduler, conf core.StorageConfig, reaper *Reaper, certs CertificateIssuer) error {
	if conf.ReaperSchedule != "" {
		if err := s.Add(conf.ReaperSchedule, "storage-reaper", func(ctx context.Context) error {
			_, err := reaper.Run(ctx)
			return err
		}); err != nil {
			return err
		}
	}
	if conf.CertificateCron != "" {
		if err := s.Add(conf.CertificateCron, "certificate-backfill", func(ctx context.Context) error {
			n, err := certs.IssueMissingCertificates(ctx)
			if n > 0 {
				s.logger.Info(fmt.Sprintf("issued %d missing certificates", n))
				if s.metrics != nil {
					s.metrics.CertificatesIssued.Add(float64(n))
				}
			}
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron reports every wake up at info level
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvMap(keysAndValues))
}

func kvMap(kv []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return m
}
