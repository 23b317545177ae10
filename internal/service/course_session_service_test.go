package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yishan1331/student-affairs-management/internal/dto"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

type fakeSessionRepo struct {
	sessions   map[int64]models.CourseSession
	courses    *fakeCourseRepo
	nextID     int64
	createErr  error
	failAfter  int
	creates    int
	salaryOnly []int64
}

func newFakeSessionRepo(courses *fakeCourseRepo) *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[int64]models.CourseSession), courses: courses, failAfter: -1}
}

func (f *fakeSessionRepo) detail(session models.CourseSession) models.CourseSessionDetail {
	detail := models.CourseSessionDetail{CourseSession: session}
	if course, ok := f.courses.courses[session.CourseID]; ok {
		detail.CourseName = course.Name
		detail.CourseDuration = course.Duration
		detail.SchoolID = course.SchoolID
		detail.SchoolName = course.SchoolName
	}
	if session.SalaryBaseID != nil {
		detail.SalaryBaseName = ptr("tier")
	}
	return detail
}

func (f *fakeSessionRepo) sorted() []models.CourseSession {
	out := make([]models.CourseSession, 0, len(f.sessions))
	for _, session := range f.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeSessionRepo) List(ctx context.Context, filter models.CourseSessionFilter) ([]models.CourseSessionDetail, int, error) {
	var out []models.CourseSessionDetail
	for _, session := range f.sorted() {
		if filter.CourseID != nil && session.CourseID != *filter.CourseID {
			continue
		}
		out = append(out, f.detail(session))
	}
	return out, len(out), nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id int64) (*models.CourseSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &session, nil
}

func (f *fakeSessionRepo) FindDetailByID(ctx context.Context, id int64) (*models.CourseSessionDetail, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := f.detail(session)
	return &detail, nil
}

func (f *fakeSessionRepo) ListByCourseInRange(ctx context.Context, courseID int64, start, end time.Time) ([]models.CourseSession, error) {
	var out []models.CourseSession
	for _, session := range f.sorted() {
		if session.CourseID == courseID && !session.Date.Before(start) && !session.Date.After(end) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ListActive(ctx context.Context) ([]models.CourseSession, error) {
	var out []models.CourseSession
	for _, session := range f.sorted() {
		if !session.IsCancelled {
			out = append(out, session)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *models.CourseSession) error {
	if f.createErr != nil && f.failAfter >= 0 && f.creates >= f.failAfter {
		return f.createErr
	}
	f.creates++
	f.nextID++
	session.ID = f.nextID
	session.Date = models.NormalizeDate(session.Date)
	f.sessions[session.ID] = *session
	return nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, session *models.CourseSession) error {
	if _, ok := f.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	session.Date = models.NormalizeDate(session.Date)
	f.sessions[session.ID] = *session
	return nil
}

func (f *fakeSessionRepo) UpdateSalary(ctx context.Context, id int64, amount decimal.NullDecimal, salaryBaseID *int64) error {
	session := f.sessions[id]
	session.SalaryAmount = amount
	session.SalaryBaseID = salaryBaseID
	f.sessions[id] = session
	f.salaryOnly = append(f.salaryOnly, id)
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id int64) error {
	delete(f.sessions, id)
	return nil
}

type sessionFixture struct {
	courses *fakeCourseRepo
	tiers   *fakeTierRepo
	repo    *fakeSessionRepo
	cache   *fakeCacheRepo
	metrics *MetricsService
	svc     *CourseSessionService
}

func newSessionFixture() *sessionFixture {
	courses, tiers, _ := newCalculatorFixture()
	metrics := NewMetricsService()
	calc := NewSalaryCalculator(courses, tiers, metrics)
	repo := newFakeSessionRepo(courses)
	cacheRepo := newFakeCacheRepo()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	svc := NewCourseSessionService(repo, courses, calc, cache, metrics, CourseSessionConfig{BatchMaxDays: 62}, nil, zap.NewNop())
	return &sessionFixture{courses: courses, tiers: tiers, repo: repo, cache: cacheRepo, metrics: metrics, svc: svc}
}

func assertAppError(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want.Code, appErrors.FromError(err).Code)
}

func TestCourseSessionCreateActive(t *testing.T) {
	f := newSessionFixture()

	detail, err := f.svc.Create(context.Background(), dto.CreateCourseSessionRequest{
		CourseID:           10,
		Date:               "2024-03-04T15:30:00+08:00",
		ActualStudentCount: ptr(4),
		Note:               ptr("  makeup lesson "),
		ModifierID:         ptr("user-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), detail.Date)
	assert.Equal(t, "900", detail.SalaryAmount.Decimal.String())
	assert.Equal(t, int64(2), *detail.SalaryBaseID)
	assert.Equal(t, "makeup lesson", *detail.Note)
	assert.Equal(t, "user-1", *detail.ModifierID)
	assert.Equal(t, "North", detail.SchoolName)
	assert.Equal(t, 1, f.cache.invalidations)
}

func TestCourseSessionCreateDefaultsCountToZero(t *testing.T) {
	f := newSessionFixture()

	detail, err := f.svc.Create(context.Background(), dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04"})
	require.NoError(t, err)
	assert.Equal(t, 0, detail.ActualStudentCount)
	assert.Equal(t, int64(1), *detail.SalaryBaseID, "fixed tier covers zero attendance")
	assert.Equal(t, "500", detail.SalaryAmount.Decimal.String())
}

func TestCourseSessionCreateCancelledHasNoSalary(t *testing.T) {
	f := newSessionFixture()

	detail, err := f.svc.Create(context.Background(), dto.CreateCourseSessionRequest{
		CourseID:           10,
		Date:               "2024-03-04",
		ActualStudentCount: ptr(4),
		IsCancelled:        ptr(true),
	})
	require.NoError(t, err)
	assert.False(t, detail.SalaryAmount.Valid)
	assert.Nil(t, detail.SalaryBaseID)
}

func TestCourseSessionCreateUnmatchedKeepsNullSalary(t *testing.T) {
	f := newSessionFixture()

	detail, err := f.svc.Create(context.Background(), dto.CreateCourseSessionRequest{CourseID: 20, Date: "2024-03-03", ActualStudentCount: ptr(2)})
	require.NoError(t, err)
	assert.False(t, detail.SalaryAmount.Valid)
	assert.Nil(t, detail.SalaryBaseID)
}

func TestCourseSessionCreateErrors(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, dto.CreateCourseSessionRequest{CourseID: 99, Date: "2024-03-04"})
	assertAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Create(ctx, dto.CreateCourseSessionRequest{CourseID: 10, Date: "04/03/2024"})
	assertAppError(t, err, appErrors.ErrInvalidArgument)

	_, err = f.svc.Create(ctx, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04", ActualStudentCount: ptr(-1)})
	assertAppError(t, err, appErrors.ErrValidation)

	assert.Empty(t, f.repo.sessions)
}

func seedSession(t *testing.T, f *sessionFixture, req dto.CreateCourseSessionRequest) *models.CourseSessionDetail {
	t.Helper()
	detail, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	return detail
}

func TestCourseSessionUpdateCountRecomputes(t *testing.T) {
	f := newSessionFixture()
	seeded := seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04", ActualStudentCount: ptr(2)})

	updated, err := f.svc.Update(context.Background(), seeded.ID, dto.UpdateCourseSessionRequest{ActualStudentCount: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), *updated.SalaryBaseID)
	assert.Equal(t, "1200.01", updated.SalaryAmount.Decimal.StringFixed(2))
}

func TestCourseSessionUpdateWithoutPricingChangeKeepsSalary(t *testing.T) {
	f := newSessionFixture()
	seeded := seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04", ActualStudentCount: ptr(2)})

	// Tier edits do not leak into existing sessions until a sweep.
	f.tiers.bySchool[1] = []models.SalaryBase{tier(2, "1000", ptr(1), ptr(5))}

	updated, err := f.svc.Update(context.Background(), seeded.ID, dto.UpdateCourseSessionRequest{
		ActualStudentCount: ptr(2),
		Note:               ptr("same count"),
		Date:               ptr("2024-03-06"),
	})
	require.NoError(t, err)
	assert.Equal(t, "900", updated.SalaryAmount.Decimal.String())
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), updated.Date)
	assert.Equal(t, "same count", *updated.Note)
}

func TestCourseSessionUpdateCancelClearsSalary(t *testing.T) {
	f := newSessionFixture()
	seeded := seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04", ActualStudentCount: ptr(2)})

	updated, err := f.svc.Update(context.Background(), seeded.ID, dto.UpdateCourseSessionRequest{
		IsCancelled:        ptr(true),
		ActualStudentCount: ptr(3),
	})
	require.NoError(t, err)
	assert.True(t, updated.IsCancelled)
	assert.Equal(t, 3, updated.ActualStudentCount)
	assert.False(t, updated.SalaryAmount.Valid)
	assert.Nil(t, updated.SalaryBaseID)
}

func TestCourseSessionUpdateReactivationRecomputes(t *testing.T) {
	f := newSessionFixture()
	seeded := seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04", ActualStudentCount: ptr(2), IsCancelled: ptr(true)})

	updated, err := f.svc.Update(context.Background(), seeded.ID, dto.UpdateCourseSessionRequest{IsCancelled: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsCancelled)
	assert.Equal(t, "900", updated.SalaryAmount.Decimal.String())
}

func TestCourseSessionUpdateCourseChange(t *testing.T) {
	f := newSessionFixture()
	seeded := seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04", ActualStudentCount: ptr(2)})

	updated, err := f.svc.Update(context.Background(), seeded.ID, dto.UpdateCourseSessionRequest{CourseID: ptr(int64(20))})
	require.NoError(t, err)
	assert.Equal(t, int64(20), updated.CourseID)
	assert.False(t, updated.SalaryAmount.Valid, "school 2 has no tiers")

	_, err = f.svc.Update(context.Background(), seeded.ID, dto.UpdateCourseSessionRequest{CourseID: ptr(int64(99))})
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestCourseSessionUpdateNotFound(t *testing.T) {
	f := newSessionFixture()
	_, err := f.svc.Update(context.Background(), 404, dto.UpdateCourseSessionRequest{Note: ptr("x")})
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestCourseSessionDelete(t *testing.T) {
	f := newSessionFixture()
	seeded := seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04"})

	require.NoError(t, f.svc.Delete(context.Background(), seeded.ID))
	assert.Empty(t, f.repo.sessions)

	assertAppError(t, f.svc.Delete(context.Background(), seeded.ID), appErrors.ErrNotFound)
	_, err := f.svc.Get(context.Background(), seeded.ID)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestCourseSessionList(t *testing.T) {
	f := newSessionFixture()
	seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 10, Date: "2024-03-04"})
	seedSession(t, f, dto.CreateCourseSessionRequest{CourseID: 20, Date: "2024-03-03"})

	sessions, pagination, err := f.svc.List(context.Background(), models.CourseSessionFilter{CourseID: ptr(int64(20))})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Chess", sessions[0].CourseName)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, _, err = f.svc.List(context.Background(), models.CourseSessionFilter{StartDate: &start, EndDate: &end})
	assertAppError(t, err, appErrors.ErrInvalidArgument)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-03-01T01:00:00+08:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("2024-02-30")
	assertAppError(t, err, appErrors.ErrInvalidArgument)
}
