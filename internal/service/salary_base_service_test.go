package service

import (
	"context"
	"database/sql"
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

type mockSalaryBaseRepo struct {
	tiers  map[int64]models.SalaryBase
	nextID int64
	usage  map[int64]int
}

func (m *mockSalaryBaseRepo) List(ctx context.Context, filter models.SalaryBaseFilter) ([]models.SalaryBase, int, error) {
	var out []models.SalaryBase
	for _, tier := range m.tiers {
		out = append(out, tier)
	}
	return out, len(out), nil
}

func (m *mockSalaryBaseRepo) FindByID(ctx context.Context, id int64) (*models.SalaryBase, error) {
	tier, ok := m.tiers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tier, nil
}

func (m *mockSalaryBaseRepo) Create(ctx context.Context, tier *models.SalaryBase) error {
	m.nextID++
	tier.ID = m.nextID
	m.tiers[tier.ID] = *tier
	return nil
}

func (m *mockSalaryBaseRepo) Update(ctx context.Context, tier *models.SalaryBase) error {
	m.tiers[tier.ID] = *tier
	return nil
}

func (m *mockSalaryBaseRepo) Delete(ctx context.Context, id int64) error {
	delete(m.tiers, id)
	return nil
}

func (m *mockSalaryBaseRepo) CountBySalaryBase(ctx context.Context, salaryBaseID int64) (int, error) {
	return m.usage[salaryBaseID], nil
}

func newSalaryBaseFixture() (*mockSalaryBaseRepo, *fakeCacheRepo, *SalaryBaseService) {
	repo := &mockSalaryBaseRepo{tiers: make(map[int64]models.SalaryBase), usage: make(map[int64]int)}
	cacheRepo := newFakeCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	return repo, cacheRepo, NewSalaryBaseService(repo, repo, cache, nil, zap.NewNop())
}

func rate(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestSalaryBaseCreate(t *testing.T) {
	repo, cacheRepo, svc := newSalaryBaseFixture()

	created, err := svc.Create(context.Background(), dto.SalaryBaseRequest{
		Name:        "  Small group ",
		Description: ptr(""),
		HourlyRate:  rate("650.50"),
		MinStudents: ptr(1),
		MaxStudents: ptr(5),
		SchoolIDs:   []int64{2, 1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Small group", created.Name)
	assert.Nil(t, created.Description)
	assert.True(t, created.IsActive)
	assert.Equal(t, []int64{2, 1}, created.SchoolIDs)
	assert.Contains(t, repo.tiers, int64(1))
	assert.Equal(t, 1, cacheRepo.invalidations)
}

func TestSalaryBaseValidation(t *testing.T) {
	_, _, svc := newSalaryBaseFixture()
	ctx := context.Background()

	cases := []dto.SalaryBaseRequest{
		{Name: "missing rate", SchoolIDs: []int64{1}},
		{Name: "no schools", HourlyRate: rate("1")},
		{Name: "negative", HourlyRate: rate("-1"), SchoolIDs: []int64{1}},
		{Name: "inverted", HourlyRate: rate("1"), MinStudents: ptr(5), MaxStudents: ptr(2), SchoolIDs: []int64{1}},
		{HourlyRate: rate("1"), SchoolIDs: []int64{1}},
	}
	for _, req := range cases {
		_, err := svc.Create(ctx, req)
		assertAppError(t, err, appErrors.ErrValidation)
	}
}

func TestSalaryBaseUpdate(t *testing.T) {
	repo, _, svc := newSalaryBaseFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, dto.SalaryBaseRequest{Name: "Flat", HourlyRate: rate("500"), SchoolIDs: []int64{1}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, dto.SalaryBaseRequest{
		Name:       "Flat",
		HourlyRate: rate("550"),
		IsActive:   ptr(false),
		SchoolIDs:  []int64{3},
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "550", repo.tiers[created.ID].HourlyRate.String())
	assert.Equal(t, []int64{3}, repo.tiers[created.ID].SchoolIDs)

	_, err = svc.Update(ctx, 42, dto.SalaryBaseRequest{Name: "x", HourlyRate: rate("1"), SchoolIDs: []int64{1}})
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestSalaryBaseDelete(t *testing.T) {
	repo, _, svc := newSalaryBaseFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, dto.SalaryBaseRequest{Name: "Flat", HourlyRate: rate("500"), SchoolIDs: []int64{1}})
	require.NoError(t, err)

	repo.usage[created.ID] = 3
	assertAppError(t, svc.Delete(ctx, created.ID), appErrors.ErrConflict)
	assert.Contains(t, repo.tiers, created.ID)

	repo.usage[created.ID] = 0
	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.NotContains(t, repo.tiers, created.ID)

	assertAppError(t, svc.Delete(ctx, created.ID), appErrors.ErrNotFound)
}

func TestSalaryBaseList(t *testing.T) {
	_, _, svc := newSalaryBaseFixture()
	tiers, pagination, err := svc.List(context.Background(), models.SalaryBaseFilter{Page: 2, PageSize: 500})
	require.NoError(t, err)
	assert.NotNil(t, tiers)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}
