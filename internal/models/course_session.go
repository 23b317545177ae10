package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CourseSession is one dated occurrence of a course.
type CourseSession struct {
	ID                 int64               `db:"id" json:"id"`
	CourseID           int64               `db:"course_id" json:"course_id"`
	Date               time.Time           `db:"date" json:"date"`
	ActualStudentCount int                 `db:"actual_student_count" json:"actual_student_count"`
	IsCancelled        bool                `db:"is_cancelled" json:"is_cancelled"`
	SalaryAmount       decimal.NullDecimal `db:"salary_amount" json:"salary_amount"`
	SalaryBaseID       *int64              `db:"salary_base_id" json:"salary_base_id"`
	Note               *string             `db:"note" json:"note,omitempty"`
	ModifierID         *string             `db:"modifier_id" json:"modifier_id,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// CourseSessionDetail is a session joined with its course, school and tier.
type CourseSessionDetail struct {
	CourseSession
	CourseName      string  `db:"course_name" json:"course_name"`
	CourseStartTime string  `db:"course_start_time" json:"course_start_time"`
	CourseDuration  int     `db:"course_duration" json:"course_duration"`
	SchoolID        int64   `db:"school_id" json:"school_id"`
	SchoolName      string  `db:"school_name" json:"school_name"`
	SalaryBaseName  *string `db:"salary_base_name" json:"salary_base_name,omitempty"`
}

// CourseSessionFilter captures listing criteria.
type CourseSessionFilter struct {
	CourseID    *int64
	CourseIDs   []int64
	SchoolID    *int64
	StartDate   *time.Time
	EndDate     *time.Time
	IsCancelled *bool
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// DateLayout is the calendar date wire format.
const DateLayout = "2006-01-02"

// NormalizeDate strips the time of day, returning UTC midnight of t's UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey renders the calendar date used to compare sessions.
func DateKey(t time.Time) string {
	return NormalizeDate(t).Format(DateLayout)
}
