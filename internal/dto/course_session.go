package dto

import (
	"github.com/shopspring/decimal"

	"github.com/yishan1331/student-affairs-management/internal/models"
)

// CreateCourseSessionRequest is the payload for creating a single session.
type CreateCourseSessionRequest struct {
	CourseID           int64   `json:"course_id" validate:"required,gt=0"`
	Date               string  `json:"date" validate:"required"`
	ActualStudentCount *int    `json:"actual_student_count" validate:"omitempty,gte=0"`
	IsCancelled        *bool   `json:"is_cancelled"`
	Note               *string `json:"note" validate:"omitempty,max=1000"`
	ModifierID         *string `json:"modifier_id"`
}

// UpdateCourseSessionRequest is a partial session update; nil fields are left as stored.
type UpdateCourseSessionRequest struct {
	CourseID           *int64  `json:"course_id" validate:"omitempty,gt=0"`
	Date               *string `json:"date"`
	ActualStudentCount *int    `json:"actual_student_count" validate:"omitempty,gte=0"`
	IsCancelled        *bool   `json:"is_cancelled"`
	Note               *string `json:"note" validate:"omitempty,max=1000"`
	ModifierID         *string `json:"modifier_id"`
}

// BatchGenerateRequest expands course schedules over a date range or a calendar month.
type BatchGenerateRequest struct {
	CourseIDs  []int64 `json:"course_ids" validate:"required,min=1,dive,gt=0"`
	Year       *int    `json:"year" validate:"omitempty,gte=1970,lte=9999"`
	Month      *int    `json:"month" validate:"omitempty,gte=1,lte=12"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	ModifierID *string `json:"modifier_id"`
}

// BatchGenerateResponse reports newly created sessions.
type BatchGenerateResponse struct {
	Created  int                    `json:"created"`
	Sessions []models.CourseSession `json:"sessions"`
}

// RecalculateResponse reports the outcome of a salary sweep.
type RecalculateResponse struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
}

// RecalculateJobResponse acknowledges an asynchronous sweep.
type RecalculateJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// SalarySummaryQuery bounds the aggregation window.
type SalarySummaryQuery struct {
	StartDate string `form:"start_date" validate:"required"`
	EndDate   string `form:"end_date" validate:"required"`
	SchoolID  *int64 `form:"school_id" validate:"omitempty,gt=0"`
}

// SchoolSalarySummary groups course totals for one school.
type SchoolSalarySummary struct {
	SchoolID    int64                 `json:"schoolId"`
	SchoolName  string                `json:"schoolName"`
	Courses     []CourseSalarySummary `json:"courses"`
	TotalSalary decimal.Decimal       `json:"totalSalary"`
}

// CourseSalarySummary aggregates the sessions of one course.
type CourseSalarySummary struct {
	CourseID     int64                `json:"courseId"`
	CourseName   string               `json:"courseName"`
	SessionCount int                  `json:"sessionCount"`
	TotalSalary  decimal.Decimal      `json:"totalSalary"`
	Sessions     []SessionSalaryEntry `json:"sessions"`
}

// SessionSalaryEntry is the per-session breakdown inside a course summary.
type SessionSalaryEntry struct {
	ID                 int64               `json:"id"`
	Date               string              `json:"date"`
	ActualStudentCount int                 `json:"actualStudentCount"`
	SalaryAmount       decimal.NullDecimal `json:"salaryAmount"`
	SalaryBaseName     *string             `json:"salaryBaseName"`
}
