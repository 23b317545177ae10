package dto

import "github.com/shopspring/decimal"

// SalaryBaseRequest is the payload for creating or replacing a salary tier.
type SalaryBaseRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	HourlyRate  *decimal.Decimal `json:"hourly_rate" validate:"required"`
	MinStudents *int             `json:"min_students" validate:"omitempty,gte=0"`
	MaxStudents *int             `json:"max_students" validate:"omitempty,gte=0"`
	IsActive    *bool            `json:"is_active"`
	SchoolIDs   []int64          `json:"school_ids" validate:"required,min=1,dive,gt=0"`
}
