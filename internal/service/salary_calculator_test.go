package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

type fakeCourseRepo struct {
	courses map[int64]models.Course
	err     error
	calls   int
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	course, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

type fakeTierRepo struct {
	bySchool map[int64][]models.SalaryBase
	err      error
}

func (f *fakeTierRepo) FindActiveBySchool(ctx context.Context, schoolID int64) ([]models.SalaryBase, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bySchool[schoolID], nil
}

func newCalculatorFixture() (*fakeCourseRepo, *fakeTierRepo, *SalaryCalculator) {
	courses := &fakeCourseRepo{courses: map[int64]models.Course{
		10: {ID: 10, SchoolID: 1, SchoolName: "North", Name: "Piano", Duration: 90, DayOfWeek: "1,3"},
		20: {ID: 20, SchoolID: 2, SchoolName: "South", Name: "Chess", Duration: 45, DayOfWeek: "7"},
	}}
	tiers := &fakeTierRepo{bySchool: map[int64][]models.SalaryBase{
		1: {
			tier(1, "500", nil, nil),
			tier(2, "600", ptr(1), ptr(5)),
			tier(3, "800.005", ptr(6), nil),
		},
	}}
	return courses, tiers, NewSalaryCalculator(courses, tiers, NewMetricsService())
}

func TestSalaryCalculatorVariableTier(t *testing.T) {
	_, _, calc := newCalculatorFixture()

	result, err := calc.Calculate(context.Background(), 10, 3)
	require.NoError(t, err)
	require.True(t, result.Matched())
	assert.Equal(t, int64(2), *result.SalaryBaseID)
	assert.True(t, result.Amount.Valid)
	assert.Equal(t, "900", result.Amount.Decimal.String())
}

func TestSalaryCalculatorFixedTier(t *testing.T) {
	_, _, calc := newCalculatorFixture()

	result, err := calc.Calculate(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *result.SalaryBaseID)
	assert.Equal(t, "500", result.Amount.Decimal.String())
}

func TestSalaryCalculatorRoundsHalfAwayFromZero(t *testing.T) {
	_, _, calc := newCalculatorFixture()

	// 800.005 * 1.5 = 1200.0075
	result, err := calc.Calculate(context.Background(), 10, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(3), *result.SalaryBaseID)
	assert.Equal(t, "1200.01", result.Amount.Decimal.StringFixed(2))
}

func TestSalaryCalculatorNoMatch(t *testing.T) {
	_, _, calc := newCalculatorFixture()

	result, err := calc.Calculate(context.Background(), 20, 4)
	require.NoError(t, err)
	assert.False(t, result.Matched())
	assert.False(t, result.Amount.Valid)
	assert.Equal(t, uint64(1), calc.metrics.Snapshot().SalaryUnmatched)
}

func TestSalaryCalculatorUnknownCourse(t *testing.T) {
	_, _, calc := newCalculatorFixture()

	_, err := calc.Calculate(context.Background(), 99, 1)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSalaryCalculatorRepositoryFailure(t *testing.T) {
	_, tiers, calc := newCalculatorFixture()
	tiers.err = errors.New("db down")

	_, err := calc.Calculate(context.Background(), 10, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestSalaryAmount(t *testing.T) {
	variable := tier(1, "300", ptr(1), ptr(2))
	assert.Equal(t, "150", SalaryAmount(variable, 30).String())
	assert.Equal(t, "0", SalaryAmount(variable, 0).String())

	// 100.05 * 50 / 60 is exactly 83.375 and rounds half up.
	halfCent := tier(9, "100.05", ptr(1), nil)
	assert.Equal(t, "83.38", SalaryAmount(halfCent, 50).String())

	fixed := tier(2, "333.335", nil, nil)
	assert.True(t, decimal.RequireFromString("333.34").Equal(SalaryAmount(fixed, 120)))
}
