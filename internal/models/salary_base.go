package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalaryBase is a pay-rate tier scoped to one or more schools.
// A tier without student bounds pays HourlyRate as a flat amount per session.
type SalaryBase struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	HourlyRate  decimal.Decimal `db:"hourly_rate" json:"hourly_rate"`
	MinStudents *int            `db:"min_students" json:"min_students"`
	MaxStudents *int            `db:"max_students" json:"max_students"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	SchoolIDs   []int64         `db:"-" json:"school_ids"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// IsFixed reports whether the tier has no student-count range.
func (b SalaryBase) IsFixed() bool {
	return b.MinStudents == nil && b.MaxStudents == nil
}

// Contains reports whether count falls inside the tier's inclusive range.
func (b SalaryBase) Contains(count int) bool {
	if b.MinStudents != nil && count < *b.MinStudents {
		return false
	}
	if b.MaxStudents != nil && count > *b.MaxStudents {
		return false
	}
	return true
}

// SalaryBaseFilter narrows tier listings.
type SalaryBaseFilter struct {
	SchoolID *int64
	Active   *bool
	Page     int
	PageSize int
}

// SalaryBaseSchool links a tier to a school.
type SalaryBaseSchool struct {
	SalaryBaseID int64 `db:"salary_base_id"`
	SchoolID     int64 `db:"school_id"`
}
