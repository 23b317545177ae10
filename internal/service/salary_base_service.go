package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

type salaryBaseRepository interface {
	List(ctx context.Context, filter models.SalaryBaseFilter) ([]models.SalaryBase, int, error)
	FindByID(ctx context.Context, id int64) (*models.SalaryBase, error)
	Create(ctx context.Context, tier *models.SalaryBase) error
	Update(ctx context.Context, tier *models.SalaryBase) error
	Delete(ctx context.Context, id int64) error
}

type salaryBaseUsage interface {
	CountBySalaryBase(ctx context.Context, salaryBaseID int64) (int, error)
}

// SalaryBaseService administers salary tiers.
type SalaryBaseService struct {
	repo      salaryBaseRepository
	usage     salaryBaseUsage
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSalaryBaseService constructs a SalaryBaseService.
func NewSalaryBaseService(repo salaryBaseRepository, usage salaryBaseUsage, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SalaryBaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalaryBaseService{repo: repo, usage: usage, cache: cache, validator: validate, logger: logger}
}

// List returns tiers plus pagination data.
func (s *SalaryBaseService) List(ctx context.Context, filter models.SalaryBaseFilter) ([]models.SalaryBase, *models.Pagination, error) {
	tiers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list salary bases")
	}
	if tiers == nil {
		tiers = []models.SalaryBase{}
	}
	return tiers, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a tier by id.
func (s *SalaryBaseService) Get(ctx context.Context, id int64) (*models.SalaryBase, error) {
	tier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "salary base not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load salary base")
	}
	return tier, nil
}

// Create registers a tier. Existing session salaries are not touched until a recalculation.
func (s *SalaryBaseService) Create(ctx context.Context, req dto.SalaryBaseRequest) (*models.SalaryBase, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	tier := &models.SalaryBase{IsActive: true}
	applySalaryBaseRequest(tier, req)

	if err := s.repo.Create(ctx, tier); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create salary base")
	}
	s.cache.InvalidateSummaries(ctx)
	return tier, nil
}

// Update replaces a tier's fields and school links.
func (s *SalaryBaseService) Update(ctx context.Context, id int64, req dto.SalaryBaseRequest) (*models.SalaryBase, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	tier, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applySalaryBaseRequest(tier, req)

	if err := s.repo.Update(ctx, tier); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update salary base")
	}
	s.cache.InvalidateSummaries(ctx)
	return tier, nil
}

// Delete removes a tier that no session references.
func (s *SalaryBaseService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	inUse, err := s.usage.CountBySalaryBase(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check salary base usage")
	}
	if inUse > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "salary base is referenced by course sessions")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete salary base")
	}
	s.cache.InvalidateSummaries(ctx)
	s.logger.Info("salary base deleted", zap.Int64("salary_base_id", id))
	return nil
}

func (s *SalaryBaseService) validate(req dto.SalaryBaseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid salary base payload")
	}
	if req.HourlyRate.IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "hourly_rate must not be negative")
	}
	if req.MinStudents != nil && req.MaxStudents != nil && *req.MinStudents > *req.MaxStudents {
		return appErrors.Clone(appErrors.ErrValidation, "min_students must not exceed max_students")
	}
	return nil
}

func applySalaryBaseRequest(tier *models.SalaryBase, req dto.SalaryBaseRequest) {
	tier.Name = strings.TrimSpace(req.Name)
	tier.Description = normalizeOptional(req.Description)
	tier.HourlyRate = *req.HourlyRate
	tier.MinStudents = req.MinStudents
	tier.MaxStudents = req.MaxStudents
	if req.IsActive != nil {
		tier.IsActive = *req.IsActive
	}
	tier.SchoolIDs = uniqueIDs(req.SchoolIDs)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
