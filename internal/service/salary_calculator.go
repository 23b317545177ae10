package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

var minutesPerHour = decimal.NewFromInt(60)

type courseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

type salaryTierReader interface {
	FindActiveBySchool(ctx context.Context, schoolID int64) ([]models.SalaryBase, error)
}

// SalaryResult is the outcome of a calculation. An invalid Amount with a nil
// SalaryBaseID means no tier matched, which is distinct from a zero amount.
type SalaryResult struct {
	Amount       decimal.NullDecimal
	SalaryBaseID *int64
}

// Matched reports whether a tier was found.
func (r SalaryResult) Matched() bool {
	return r.SalaryBaseID != nil
}

// Apply copies the result onto a session.
func (r SalaryResult) Apply(session *models.CourseSession) {
	session.SalaryAmount = r.Amount
	session.SalaryBaseID = r.SalaryBaseID
}

// SalaryCalculator derives session pay from the school's active tiers.
type SalaryCalculator struct {
	courses courseReader
	tiers   salaryTierReader
	metrics *MetricsService
}

// NewSalaryCalculator constructs a SalaryCalculator.
func NewSalaryCalculator(courses courseReader, tiers salaryTierReader, metrics *MetricsService) *SalaryCalculator {
	return &SalaryCalculator{courses: courses, tiers: tiers, metrics: metrics}
}

// Calculate loads the course and computes salary for count attendees.
func (c *SalaryCalculator) Calculate(ctx context.Context, courseID int64, count int) (SalaryResult, error) {
	course, err := c.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SalaryResult{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return SalaryResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return c.CalculateForCourse(ctx, course, count)
}

// CalculateForCourse computes salary for an already loaded course.
func (c *SalaryCalculator) CalculateForCourse(ctx context.Context, course *models.Course, count int) (SalaryResult, error) {
	if course == nil {
		return SalaryResult{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	tiers, err := c.tiers.FindActiveBySchool(ctx, course.SchoolID)
	if err != nil {
		return SalaryResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load salary bases")
	}

	tier := MatchSalaryBase(tiers, count)
	if tier == nil {
		c.metrics.RecordSalaryUnmatched()
		return SalaryResult{}, nil
	}

	id := tier.ID
	return SalaryResult{
		Amount:       decimal.NewNullDecimal(SalaryAmount(*tier, course.Duration)),
		SalaryBaseID: &id,
	}, nil
}

// SalaryAmount prices one session of durationMinutes under tier, rounded to cents.
// Fixed tiers pay their rate flat; variable tiers pay it per hour.
func SalaryAmount(tier models.SalaryBase, durationMinutes int) decimal.Decimal {
	if tier.IsFixed() {
		return tier.HourlyRate.Round(2)
	}
	minutes := decimal.NewFromInt(int64(durationMinutes))
	return tier.HourlyRate.Mul(minutes).Div(minutesPerHour).Round(2)
}
