package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
	"github.com/yishan1331/student-affairs-management/pkg/jobs"
	"github.com/yishan1331/student-affairs-management/pkg/logger"
)

// RecalculationJobType identifies salary sweep jobs on the queue.
const RecalculationJobType = "salary.recalculate"

// RecalculateAll reprices every active session against the current salary bases.
// Sessions that no longer match any tier keep their stored salary.
func (s *CourseSessionService) RecalculateAll(ctx context.Context) (*dto.RecalculateResponse, error) {
	started := time.Now()
	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course sessions")
	}

	result := &dto.RecalculateResponse{Total: len(sessions)}
	defer func() {
		if result.Updated > 0 {
			s.metrics.RecordSalaryRecalculated(result.Updated)
			s.cache.InvalidateSummaries(ctx)
		}
	}()

	courses := make(map[int64]*models.Course)
	for _, session := range sessions {
		course, ok := courses[session.CourseID]
		if !ok {
			course, err = s.courses.FindByID(ctx, session.CourseID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
			}
			courses[session.CourseID] = course
		}

		salary, err := s.calculator.CalculateForCourse(ctx, course, session.ActualStudentCount)
		if err != nil {
			return nil, err
		}
		if !salary.Matched() {
			continue
		}
		if err := s.repo.UpdateSalary(ctx, session.ID, salary.Amount, salary.SalaryBaseID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course session salary")
		}
		result.Updated++
	}

	logger.WithContext(ctx, s.logger).Info("salary recalculation finished",
		zap.Int("total", result.Total),
		zap.Int("updated", result.Updated),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
	Status(id string) (jobs.Status, bool)
}

// RecalculationScheduler queues salary sweeps to run in the background.
type RecalculationScheduler struct {
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewRecalculationScheduler constructs a RecalculationScheduler.
func NewRecalculationScheduler(queue jobEnqueuer, logger *zap.Logger) *RecalculationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecalculationScheduler{queue: queue, logger: logger}
}

// Schedule enqueues a sweep on behalf of requestedBy.
func (s *RecalculationScheduler) Schedule(ctx context.Context, requestedBy string) (*dto.RecalculateJobResponse, error) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    RecalculationJobType,
		Payload: requestedBy,
	}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule salary recalculation")
	}
	logger.WithContext(ctx, s.logger).Info("salary recalculation scheduled", zap.String("job_id", job.ID), zap.String("requested_by", requestedBy))
	return &dto.RecalculateJobResponse{JobID: job.ID, Status: string(jobs.StateQueued)}, nil
}

// Status reports a scheduled sweep.
func (s *RecalculationScheduler) Status(ctx context.Context, jobID string) (*jobs.Status, error) {
	status, ok := s.queue.Status(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recalculation job not found")
	}
	return &status, nil
}

type salaryRecalculator interface {
	RecalculateAll(ctx context.Context) (*dto.RecalculateResponse, error)
}

// RecalculationWorker executes queued salary sweeps.
type RecalculationWorker struct {
	sessions salaryRecalculator
	logger   *zap.Logger
}

// NewRecalculationWorker constructs a RecalculationWorker.
func NewRecalculationWorker(sessions salaryRecalculator, logger *zap.Logger) *RecalculationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecalculationWorker{sessions: sessions, logger: logger}
}

// Handle runs one sweep job.
func (w *RecalculationWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != RecalculationJobType {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "unsupported job type "+job.Type)
	}
	result, err := w.sessions.RecalculateAll(ctx)
	if err != nil {
		w.logger.Error("salary recalculation job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		return err
	}
	w.logger.Info("salary recalculation job done",
		zap.String("job_id", job.ID),
		zap.Int("total", result.Total),
		zap.Int("updated", result.Updated),
	)
	return nil
}
