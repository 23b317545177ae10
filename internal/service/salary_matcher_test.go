package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yishan1331/student-affairs-management/internal/models"
)

func ptr[T any](v T) *T {
	return &v
}

func tier(id int64, rate string, min, max *int) models.SalaryBase {
	return models.SalaryBase{
		ID:          id,
		Name:        "tier",
		HourlyRate:  decimal.RequireFromString(rate),
		MinStudents: min,
		MaxStudents: max,
		IsActive:    true,
	}
}

func TestMatchSalaryBase(t *testing.T) {
	fixed := tier(1, "500", nil, nil)
	small := tier(2, "600", ptr(1), ptr(5))
	large := tier(3, "800", ptr(6), nil)
	wide := tier(4, "700", ptr(0), ptr(10))
	upTo := tier(5, "650", nil, ptr(3))

	tests := []struct {
		name   string
		tiers  []models.SalaryBase
		count  int
		wantID int64
		none   bool
	}{
		{name: "no tiers", tiers: nil, count: 3, none: true},
		{name: "fixed only", tiers: []models.SalaryBase{fixed}, count: 42, wantID: 1},
		{name: "bounded beats fixed", tiers: []models.SalaryBase{fixed, small}, count: 3, wantID: 2},
		{name: "falls back to fixed outside range", tiers: []models.SalaryBase{fixed, small}, count: 0, wantID: 1},
		{name: "two bounds beat one", tiers: []models.SalaryBase{large, wide}, count: 8, wantID: 4},
		{name: "narrower span wins", tiers: []models.SalaryBase{wide, small}, count: 4, wantID: 2},
		{name: "inclusive upper bound", tiers: []models.SalaryBase{small}, count: 5, wantID: 2},
		{name: "inclusive lower bound", tiers: []models.SalaryBase{large}, count: 6, wantID: 3},
		{name: "max only beats unbounded min only", tiers: []models.SalaryBase{tier(9, "1", ptr(0), nil), upTo}, count: 2, wantID: 5},
		{name: "nothing contains count", tiers: []models.SalaryBase{small, upTo}, count: 6, none: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchSalaryBase(tt.tiers, tt.count)
			if tt.none {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestMatchSalaryBaseTieBreaksOnLowestID(t *testing.T) {
	a := tier(7, "100", ptr(1), ptr(5))
	b := tier(3, "200", ptr(2), ptr(6))
	got := MatchSalaryBase([]models.SalaryBase{a, b}, 4)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)

	c := tier(8, "100", ptr(1), nil)
	d := tier(6, "200", ptr(3), nil)
	got = MatchSalaryBase([]models.SalaryBase{c, d}, 4)
	require.NotNil(t, got)
	assert.Equal(t, int64(6), got.ID, "unbounded spans compare equal")
}

func TestMatchSalaryBaseReturnsCopy(t *testing.T) {
	tiers := []models.SalaryBase{tier(1, "100", nil, nil)}
	got := MatchSalaryBase(tiers, 0)
	require.NotNil(t, got)
	got.Name = "changed"
	assert.Equal(t, "tier", tiers[0].Name)
}
