package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

func dates(sessions []models.CourseSession) []string {
	out := make([]string, len(sessions))
	for i, session := range sessions {
		out[i] = models.DateKey(session.Date)
	}
	return out
}

func TestResolveBatchRange(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	start, end, err := resolveBatchRange(dto.BatchGenerateRequest{Year: ptr(2024), Month: ptr(2)}, 366)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 2, 1), start)
	assert.Equal(t, day(2024, 2, 29), end)

	start, end, err = resolveBatchRange(dto.BatchGenerateRequest{StartDate: ptr("2024-12-30"), EndDate: ptr("2025-01-02")}, 366)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 12, 30), start)
	assert.Equal(t, day(2025, 1, 2), end)

	invalid := []dto.BatchGenerateRequest{
		{},
		{Year: ptr(2024)},
		{StartDate: ptr("2024-01-01")},
		{StartDate: ptr("2024-01-01"), EndDate: ptr("2024-01-31"), Year: ptr(2024), Month: ptr(1)},
		{StartDate: ptr("2024-02-01"), EndDate: ptr("2024-01-31")},
		{StartDate: ptr("2024-01-01"), EndDate: ptr("2024-03-31")},
		{StartDate: ptr("garbage"), EndDate: ptr("2024-01-31")},
	}
	for _, req := range invalid {
		_, _, err := resolveBatchRange(req, 62)
		assertAppError(t, err, appErrors.ErrInvalidArgument)
	}
}

func TestParseWeekdaysAndScheduledDates(t *testing.T) {
	weekdays := parseWeekdays(" 1, 7,x,8,0,3")
	assert.Len(t, weekdays, 3)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) // Friday
	end := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	got := scheduledDates(start, end, weekdays)
	keys := make([]string, len(got))
	for i, d := range got {
		keys[i] = models.DateKey(d)
	}
	assert.Equal(t, []string{"2024-03-03", "2024-03-04", "2024-03-06", "2024-03-10", "2024-03-11"}, keys)

	assert.Empty(t, scheduledDates(start, end, parseWeekdays("")))
}

func TestBatchGenerateMonth(t *testing.T) {
	f := newSessionFixture()

	resp, err := f.svc.BatchGenerate(context.Background(), dto.BatchGenerateRequest{
		CourseIDs:  []int64{10, 99, 20},
		Year:       ptr(2024),
		Month:      ptr(3),
		ModifierID: ptr("admin-1"),
	})
	require.NoError(t, err)

	// Course 10 meets Mon/Wed (8 dates in March 2024), course 20 on Sundays (5).
	assert.Equal(t, 13, resp.Created)
	require.Len(t, resp.Sessions, 13)
	assert.Equal(t, "2024-03-04", models.DateKey(resp.Sessions[0].Date))
	for _, session := range resp.Sessions {
		assert.False(t, session.IsCancelled)
		assert.Zero(t, session.ActualStudentCount)
		assert.Nil(t, session.Note)
		assert.Equal(t, "admin-1", *session.ModifierID)
		if session.CourseID == 10 {
			assert.Equal(t, "500", session.SalaryAmount.Decimal.String())
			assert.Equal(t, int64(1), *session.SalaryBaseID)
		} else {
			assert.False(t, session.SalaryAmount.Valid)
		}
	}
	assert.Equal(t, uint64(13), f.metrics.Snapshot().SessionsGenerated)
	assert.Equal(t, 1, f.cache.invalidations)
}

func TestBatchGenerateIsIdempotent(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-06", IsCancelled: ptr(true)})

	req := dto.BatchGenerateRequest{CourseIDs: []int64{10}, StartDate: ptr("2024-03-01"), EndDate: ptr("2024-03-10")}
	first, err := f.svc.BatchGenerate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-04"}, dates(first.Sessions), "cancelled session still covers its date")

	second, err := f.svc.BatchGenerate(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Empty(t, second.Sessions)
	assert.Len(t, f.repo.sessions, 2)
}

func TestBatchGenerateDuplicateCourseIDs(t *testing.T) {
	f := newSessionFixture()

	resp, err := f.svc.BatchGenerate(context.Background(), dto.BatchGenerateRequest{
		CourseIDs: []int64{20, 20},
		StartDate: ptr("2024-03-01"),
		EndDate:   ptr("2024-03-10"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-03", "2024-03-10"}, dates(resp.Sessions))
}

func TestBatchGenerateAbortsOnCreateFailure(t *testing.T) {
	f := newSessionFixture()
	f.repo.createErr = errors.New("insert failed")
	f.repo.failAfter = 2

	_, err := f.svc.BatchGenerate(context.Background(), dto.BatchGenerateRequest{
		CourseIDs: []int64{10},
		Year:      ptr(2024),
		Month:     ptr(3),
	})
	assertAppError(t, err, appErrors.ErrInternal)
	assert.Len(t, f.repo.sessions, 2, "earlier inserts are kept")
	assert.Equal(t, 1, f.cache.invalidations)
}

func TestBatchGenerateRejectsBadInput(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	_, err := f.svc.BatchGenerate(ctx, dto.BatchGenerateRequest{Year: ptr(2024), Month: ptr(3)})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.BatchGenerate(ctx, dto.BatchGenerateRequest{CourseIDs: []int64{10}, Year: ptr(2024)})
	assertAppError(t, err, appErrors.ErrInvalidArgument)
	assert.Empty(t, f.repo.sessions)
}
