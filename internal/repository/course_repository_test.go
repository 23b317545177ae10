package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	mock.ExpectQuery(`FROM courses c JOIN schools s ON s.id = c.school_id WHERE c.id = \$1`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "school_name", "name", "duration", "day_of_week", "start_time", "created_at", "updated_at"}).
			AddRow(10, 1, "North", "Piano", 90, "1,3", "16:00", now, now))

	course, err := repo.FindByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "North", course.SchoolName)
	assert.Equal(t, 90, course.Duration)
	assert.Equal(t, "1,3", course.DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}
