package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

type courseSessionRepository interface {
	List(ctx context.Context, filter models.CourseSessionFilter) ([]models.CourseSessionDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.CourseSession, error)
	FindDetailByID(ctx context.Context, id int64) (*models.CourseSessionDetail, error)
	ListByCourseInRange(ctx context.Context, courseID int64, start, end time.Time) ([]models.CourseSession, error)
	ListActive(ctx context.Context) ([]models.CourseSession, error)
	Create(ctx context.Context, session *models.CourseSession) error
	Update(ctx context.Context, session *models.CourseSession) error
	UpdateSalary(ctx context.Context, id int64, amount decimal.NullDecimal, salaryBaseID *int64) error
	Delete(ctx context.Context, id int64) error
}

type salaryCalculator interface {
	Calculate(ctx context.Context, courseID int64, count int) (SalaryResult, error)
	CalculateForCourse(ctx context.Context, course *models.Course, count int) (SalaryResult, error)
}

// CourseSessionConfig tunes session generation.
type CourseSessionConfig struct {
	BatchMaxDays int
}

// CourseSessionService manages course sessions and keeps their salary in step with attendance.
type CourseSessionService struct {
	repo       courseSessionRepository
	courses    courseReader
	calculator salaryCalculator
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        CourseSessionConfig
}

// NewCourseSessionService constructs a CourseSessionService.
func NewCourseSessionService(repo courseSessionRepository, courses courseReader, calculator salaryCalculator, cache *CacheService, metrics *MetricsService, cfg CourseSessionConfig, validate *validator.Validate, logger *zap.Logger) *CourseSessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchMaxDays <= 0 {
		cfg.BatchMaxDays = 366
	}
	return &CourseSessionService{
		repo:       repo,
		courses:    courses,
		calculator: calculator,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// List returns joined sessions plus pagination data.
func (s *CourseSessionService) List(ctx context.Context, filter models.CourseSessionFilter) ([]models.CourseSessionDetail, *models.Pagination, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidArgument, "start_date must not be after end_date")
	}
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course sessions")
	}
	if sessions == nil {
		sessions = []models.CourseSessionDetail{}
	}
	return sessions, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a session joined with its course, school and salary base.
func (s *CourseSessionService) Get(ctx context.Context, id int64) (*models.CourseSessionDetail, error) {
	session, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course session")
	}
	return session, nil
}

// Create records a session. Active sessions are priced immediately; cancelled ones carry no salary.
func (s *CourseSessionService) Create(ctx context.Context, req dto.CreateCourseSessionRequest) (*models.CourseSessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid course session payload")
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	session := &models.CourseSession{
		CourseID:   course.ID,
		Date:       date,
		Note:       normalizeOptional(req.Note),
		ModifierID: normalizeOptional(req.ModifierID),
	}
	if req.ActualStudentCount != nil {
		session.ActualStudentCount = *req.ActualStudentCount
	}
	if req.IsCancelled != nil {
		session.IsCancelled = *req.IsCancelled
	}

	if !session.IsCancelled {
		result, err := s.calculator.CalculateForCourse(ctx, course, session.ActualStudentCount)
		if err != nil {
			return nil, err
		}
		result.Apply(session)
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course session")
	}
	s.cache.InvalidateSummaries(ctx)
	return s.Get(ctx, session.ID)
}

// Update applies a partial change. Salary is recomputed only when the session is active and
// its course or attendance changed, or it was explicitly reactivated.
func (s *CourseSessionService) Update(ctx context.Context, id int64, req dto.UpdateCourseSessionRequest) (*models.CourseSessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid course session payload")
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course session")
	}

	courseChanged := req.CourseID != nil && *req.CourseID != session.CourseID
	countChanged := req.ActualStudentCount != nil && *req.ActualStudentCount != session.ActualStudentCount
	reactivated := req.IsCancelled != nil && !*req.IsCancelled && session.IsCancelled

	var course *models.Course
	if courseChanged {
		if course, err = s.loadCourse(ctx, *req.CourseID); err != nil {
			return nil, err
		}
		session.CourseID = course.ID
	}
	if req.Date != nil {
		date, err := ParseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		session.Date = date
	}
	if req.ActualStudentCount != nil {
		session.ActualStudentCount = *req.ActualStudentCount
	}
	if req.IsCancelled != nil {
		session.IsCancelled = *req.IsCancelled
	}
	if req.Note != nil {
		session.Note = normalizeOptional(req.Note)
	}
	if req.ModifierID != nil {
		session.ModifierID = normalizeOptional(req.ModifierID)
	}

	switch {
	case session.IsCancelled:
		SalaryResult{}.Apply(session)
	case courseChanged || countChanged || reactivated:
		var result SalaryResult
		if course != nil {
			result, err = s.calculator.CalculateForCourse(ctx, course, session.ActualStudentCount)
		} else {
			result, err = s.calculator.Calculate(ctx, session.CourseID, session.ActualStudentCount)
		}
		if err != nil {
			return nil, err
		}
		result.Apply(session)
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course session")
	}
	s.cache.InvalidateSummaries(ctx)
	return s.Get(ctx, session.ID)
}

// Delete removes a session regardless of its state.
func (s *CourseSessionService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course session")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course session")
	}
	s.cache.InvalidateSummaries(ctx)
	return nil
}

func (s *CourseSessionService) loadCourse(ctx context.Context, id int64) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns its UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(models.DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid date "+raw+", expected YYYY-MM-DD")
	}
	return models.NormalizeDate(t), nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
