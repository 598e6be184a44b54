package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
	"github.com/codecampus-id/academy-api/pkg/jobs"
)

type sweepClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListActiveIDs(ctx context.Context, now time.Time) ([]string, error)
}

// SweepService walks every active class in the background and runs the full
// engine pass over each, so classes nobody opens still get their sessions
// topped up and lessons assigned.
type SweepService struct {
	classes  sweepClassRepository
	planner  sessionPlanner
	assigner lessonAssigner
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
}

// SweepConfig tunes the background sweep.
type SweepConfig struct {
	Workers    int
	BufferSize int
	Interval   time.Duration
}

// NewSweepService constructs SweepService and its worker queue.
func NewSweepService(classes sweepClassRepository, planner sessionPlanner, assigner lessonAssigner, cfg SweepConfig, metrics *MetricsService, logger *zap.Logger) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s := &SweepService{
		classes:  classes,
		planner:  planner,
		assigner: assigner,
		interval: cfg.Interval,
		logger:   logger,
		metrics:  metrics,
	}
	s.queue = jobs.NewQueue("class-sweep", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: 1,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool and the periodic sweep loop.
func (s *SweepService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.loop(ctx)
}

// Stop drains the worker pool.
func (s *SweepService) Stop() {
	s.queue.Stop()
}

// SweepNow enqueues every active class for an immediate pass.
func (s *SweepService) SweepNow(ctx context.Context) (int, error) {
	ids, err := s.classes.ListActiveIDs(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active classes")
	}
	enqueued := 0
	for _, id := range ids {
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Kind: "sweep", ClassID: id}); err != nil {
			s.logger.Warn("failed to enqueue sweep job", zap.String("class_id", id), zap.Error(err))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *SweepService) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepNow(ctx); err != nil {
				s.logger.Error("sweep enqueue failed", zap.Error(err))
			} else {
				s.logger.Info("sweep enqueued", zap.Int("classes", n))
			}
		}
	}
}

func (s *SweepService) handle(ctx context.Context, job jobs.Job) error {
	start := time.Now()
	gen, err := s.planner.EnsureFutureSessions(ctx, job.ClassID)
	if err != nil {
		s.observe(job, start, false)
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveEnginePass(gen.SessionsCreated, 0, 0)
	}
	class, err := s.classes.FindByID(ctx, job.ClassID)
	if err != nil {
		s.observe(job, start, false)
		return err
	}
	if class.IsWeekly() && class.LevelID != nil {
		report, err := s.assigner.AutoAssign(ctx, job.ClassID)
		if err != nil {
			s.observe(job, start, false)
			return err
		}
		if s.metrics != nil {
			s.metrics.ObserveEnginePass(0, report.LessonsAssigned, report.BlocksCreated)
		}
	}
	s.observe(job, start, true)
	return nil
}

func (s *SweepService) observe(job jobs.Job, start time.Time, ok bool) {
	if s.metrics != nil {
		s.metrics.ObserveSweep(time.Since(start), ok)
	}
	s.logger.Debug("sweep pass finished",
		zap.String("class_id", job.ClassID),
		zap.Bool("ok", ok),
		zap.Duration("took", time.Since(start)))
}
