package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/yishan1331/student-affairs-management/internal/models"
)

// QueryObserver receives timings for labelled database queries.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

const (
	sessionColumns = `cs.id, cs.course_id, cs.date, cs.actual_student_count, cs.is_cancelled, cs.salary_amount, cs.salary_base_id, cs.note, cs.modifier_id, cs.created_at, cs.updated_at`

	sessionDetailColumns = sessionColumns + `, c.name AS course_name, COALESCE(c.start_time, '') AS course_start_time, c.duration AS course_duration, s.id AS school_id, s.name AS school_name, sb.name AS salary_base_name`

	sessionDetailFrom = `FROM course_sessions cs
JOIN courses c ON c.id = cs.course_id
JOIN schools s ON s.id = c.school_id
LEFT JOIN salary_bases sb ON sb.id = cs.salary_base_id`
)

// CourseSessionRepository manages persistence for course sessions.
type CourseSessionRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewCourseSessionRepository constructs a CourseSessionRepository. observer may be nil.
func NewCourseSessionRepository(db *sqlx.DB, observer QueryObserver) *CourseSessionRepository {
	return &CourseSessionRepository{db: db, observer: observer}
}

func (r *CourseSessionRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}

// List returns joined sessions matching filters along with the total count.
// Caller ordering is primary; course start time then id break ties.
func (r *CourseSessionRepository) List(ctx context.Context, filter models.CourseSessionFilter) ([]models.CourseSessionDetail, int, error) {
	defer r.observe("course_sessions.list", time.Now())

	base := sessionDetailFrom + " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CourseID != nil {
		conditions = append(conditions, fmt.Sprintf("cs.course_id = $%d", len(args)+1))
		args = append(args, *filter.CourseID)
	}
	if len(filter.CourseIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("cs.course_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.CourseIDs))
	}
	if filter.SchoolID != nil {
		conditions = append(conditions, fmt.Sprintf("c.school_id = $%d", len(args)+1))
		args = append(args, *filter.SchoolID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("cs.date >= $%d", len(args)+1))
		args = append(args, models.NormalizeDate(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("cs.date <= $%d", len(args)+1))
		args = append(args, models.NormalizeDate(*filter.EndDate))
	}
	if filter.IsCancelled != nil {
		conditions = append(conditions, fmt.Sprintf("cs.is_cancelled = $%d", len(args)+1))
		args = append(args, *filter.IsCancelled)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"date":                 "cs.date",
		"created_at":           "cs.created_at",
		"updated_at":           "cs.updated_at",
		"actual_student_count": "cs.actual_student_count",
		"salary_amount":        "cs.salary_amount",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "cs.date"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	_, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := models.Offset(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, c.start_time ASC, cs.id ASC LIMIT %d OFFSET %d", sessionDetailColumns, base, column, order, size, offset)
	var sessions []models.CourseSessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list course sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count course sessions: %w", err)
	}

	return sessions, total, nil
}

// FindByID fetches the bare session row.
func (r *CourseSessionRepository) FindByID(ctx context.Context, id int64) (*models.CourseSession, error) {
	query := "SELECT " + sessionColumns + " FROM course_sessions cs WHERE cs.id = $1"
	var session models.CourseSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindDetailByID fetches a session joined with its course, school and tier.
func (r *CourseSessionRepository) FindDetailByID(ctx context.Context, id int64) (*models.CourseSessionDetail, error) {
	query := "SELECT " + sessionDetailColumns + " " + sessionDetailFrom + " WHERE cs.id = $1"
	var session models.CourseSessionDetail
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByCourseInRange returns a course's sessions dated within [start, end].
func (r *CourseSessionRepository) ListByCourseInRange(ctx context.Context, courseID int64, start, end time.Time) ([]models.CourseSession, error) {
	defer r.observe("course_sessions.by_course_range", time.Now())
	query := "SELECT " + sessionColumns + " FROM course_sessions cs WHERE cs.course_id = $1 AND cs.date >= $2 AND cs.date <= $3 ORDER BY cs.date ASC"
	var sessions []models.CourseSession
	if err := r.db.SelectContext(ctx, &sessions, query, courseID, models.NormalizeDate(start), models.NormalizeDate(end)); err != nil {
		return nil, fmt.Errorf("list course sessions in range: %w", err)
	}
	return sessions, nil
}

// ListActive returns every non-cancelled session.
func (r *CourseSessionRepository) ListActive(ctx context.Context) ([]models.CourseSession, error) {
	defer r.observe("course_sessions.active", time.Now())
	query := "SELECT " + sessionColumns + " FROM course_sessions cs WHERE cs.is_cancelled = FALSE ORDER BY cs.id ASC"
	var sessions []models.CourseSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list active course sessions: %w", err)
	}
	return sessions, nil
}

// ListForSummary returns non-cancelled joined sessions dated within [start, end], oldest first.
func (r *CourseSessionRepository) ListForSummary(ctx context.Context, start, end time.Time, schoolID *int64) ([]models.CourseSessionDetail, error) {
	defer r.observe("course_sessions.summary", time.Now())
	query := "SELECT " + sessionDetailColumns + " " + sessionDetailFrom + " WHERE cs.is_cancelled = FALSE AND cs.date >= $1 AND cs.date <= $2"
	args := []interface{}{models.NormalizeDate(start), models.NormalizeDate(end)}
	if schoolID != nil {
		query += " AND c.school_id = $3"
		args = append(args, *schoolID)
	}
	query += " ORDER BY cs.date ASC, cs.id ASC"

	var sessions []models.CourseSessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list course sessions for summary: %w", err)
	}
	return sessions, nil
}

// Create inserts a session and assigns its id. The date is stored without time of day.
func (r *CourseSessionRepository) Create(ctx context.Context, session *models.CourseSession) error {
	defer r.observe("course_sessions.create", time.Now())
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	session.Date = models.NormalizeDate(session.Date)

	const query = `INSERT INTO course_sessions (course_id, date, actual_student_count, is_cancelled, salary_amount, salary_base_id, note, modifier_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		session.CourseID,
		session.Date,
		session.ActualStudentCount,
		session.IsCancelled,
		session.SalaryAmount,
		session.SalaryBaseID,
		session.Note,
		session.ModifierID,
		session.CreatedAt,
		session.UpdatedAt,
	).Scan(&session.ID); err != nil {
		return fmt.Errorf("create course session: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of a session.
func (r *CourseSessionRepository) Update(ctx context.Context, session *models.CourseSession) error {
	defer r.observe("course_sessions.update", time.Now())
	session.UpdatedAt = time.Now().UTC()
	session.Date = models.NormalizeDate(session.Date)

	const query = `UPDATE course_sessions SET course_id = :course_id, date = :date, actual_student_count = :actual_student_count, is_cancelled = :is_cancelled,
		salary_amount = :salary_amount, salary_base_id = :salary_base_id, note = :note, modifier_id = :modifier_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update course session: %w", err)
	}
	return nil
}

// UpdateSalary writes only the computed salary columns.
func (r *CourseSessionRepository) UpdateSalary(ctx context.Context, id int64, amount decimal.NullDecimal, salaryBaseID *int64) error {
	defer r.observe("course_sessions.update_salary", time.Now())
	const query = `UPDATE course_sessions SET salary_amount = $2, salary_base_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, amount, salaryBaseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course session salary: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *CourseSessionRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM course_sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete course session: %w", err)
	}
	return nil
}

// CountBySalaryBase counts sessions referencing a salary tier.
func (r *CourseSessionRepository) CountBySalaryBase(ctx context.Context, salaryBaseID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM course_sessions WHERE salary_base_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, salaryBaseID); err != nil {
		return 0, fmt.Errorf("count course sessions by salary base: %w", err)
	}
	return total, nil
}
