package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/yishan1331/student-affairs-management/internal/models"
)

// CourseRepository reads courses together with their school.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID fetches a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT c.id, c.school_id, s.name AS school_name, c.name, c.duration, c.day_of_week, COALESCE(c.start_time, '') AS start_time, c.created_at, c.updated_at
		FROM courses c JOIN schools s ON s.id = c.school_id WHERE c.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}
