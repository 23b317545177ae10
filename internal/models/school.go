package models

import "time"

// School is the owning organisation of courses and salary tiers.
type School struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Course is a recurring weekly class held at a school.
type Course struct {
	ID         int64     `db:"id" json:"id"`
	SchoolID   int64     `db:"school_id" json:"school_id"`
	SchoolName string    `db:"school_name" json:"school_name"`
	Name       string    `db:"name" json:"name"`
	Duration   int       `db:"duration" json:"duration"`
	DayOfWeek  string    `db:"day_of_week" json:"day_of_week"`
	StartTime  string    `db:"start_time" json:"start_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
