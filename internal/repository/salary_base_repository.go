package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/yishan1331/student-affairs-management/internal/models"
)

const salaryBaseColumns = `sb.id, sb.name, sb.description, sb.hourly_rate, sb.min_students, sb.max_students, sb.is_active, sb.created_at, sb.updated_at`

// SalaryBaseRepository manages salary tiers and their school links.
type SalaryBaseRepository struct {
	db *sqlx.DB
}

// NewSalaryBaseRepository constructs a SalaryBaseRepository.
func NewSalaryBaseRepository(db *sqlx.DB) *SalaryBaseRepository {
	return &SalaryBaseRepository{db: db}
}

// List returns tiers matching filters along with total count.
func (r *SalaryBaseRepository) List(ctx context.Context, filter models.SalaryBaseFilter) ([]models.SalaryBase, int, error) {
	base := "FROM salary_bases sb WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolID != nil {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM salary_base_schools sbs WHERE sbs.salary_base_id = sb.id AND sbs.school_id = $%d)", len(args)+1))
		args = append(args, *filter.SchoolID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("sb.is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	_, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := models.Offset(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY sb.id ASC LIMIT %d OFFSET %d", salaryBaseColumns, base, size, offset)
	var tiers []models.SalaryBase
	if err := r.db.SelectContext(ctx, &tiers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list salary bases: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count salary bases: %w", err)
	}

	if err := r.attachSchools(ctx, tiers); err != nil {
		return nil, 0, err
	}
	return tiers, total, nil
}

// FindByID fetches a tier and its school ids.
func (r *SalaryBaseRepository) FindByID(ctx context.Context, id int64) (*models.SalaryBase, error) {
	query := "SELECT " + salaryBaseColumns + " FROM salary_bases sb WHERE sb.id = $1"
	var tier models.SalaryBase
	if err := r.db.GetContext(ctx, &tier, query, id); err != nil {
		return nil, err
	}
	tiers := []models.SalaryBase{tier}
	if err := r.attachSchools(ctx, tiers); err != nil {
		return nil, err
	}
	return &tiers[0], nil
}

// FindActiveBySchool returns the active tiers linked to a school, ordered by id.
func (r *SalaryBaseRepository) FindActiveBySchool(ctx context.Context, schoolID int64) ([]models.SalaryBase, error) {
	query := "SELECT " + salaryBaseColumns + ` FROM salary_bases sb
		JOIN salary_base_schools sbs ON sbs.salary_base_id = sb.id
		WHERE sbs.school_id = $1 AND sb.is_active = TRUE ORDER BY sb.id ASC`
	var tiers []models.SalaryBase
	if err := r.db.SelectContext(ctx, &tiers, query, schoolID); err != nil {
		return nil, fmt.Errorf("list active salary bases for school: %w", err)
	}
	return tiers, nil
}

// Create inserts a tier and its school links in one transaction.
func (r *SalaryBaseRepository) Create(ctx context.Context, tier *models.SalaryBase) (err error) {
	now := time.Now().UTC()
	tier.CreatedAt = now
	tier.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin salary base transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO salary_bases (name, description, hourly_rate, min_students, max_students, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err = tx.QueryRowxContext(ctx, query, tier.Name, tier.Description, tier.HourlyRate, tier.MinStudents, tier.MaxStudents, tier.IsActive, tier.CreatedAt, tier.UpdatedAt).Scan(&tier.ID); err != nil {
		return fmt.Errorf("create salary base: %w", err)
	}
	if err = insertSchoolLinks(ctx, tx, tier.ID, tier.SchoolIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit salary base: %w", err)
	}
	return nil
}

// Update overwrites a tier and replaces its school links.
func (r *SalaryBaseRepository) Update(ctx context.Context, tier *models.SalaryBase) (err error) {
	tier.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin salary base transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE salary_bases SET name = $2, description = $3, hourly_rate = $4, min_students = $5, max_students = $6, is_active = $7, updated_at = $8 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query, tier.ID, tier.Name, tier.Description, tier.HourlyRate, tier.MinStudents, tier.MaxStudents, tier.IsActive, tier.UpdatedAt); err != nil {
		return fmt.Errorf("update salary base: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM salary_base_schools WHERE salary_base_id = $1`, tier.ID); err != nil {
		return fmt.Errorf("clear salary base schools: %w", err)
	}
	if err = insertSchoolLinks(ctx, tx, tier.ID, tier.SchoolIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit salary base: %w", err)
	}
	return nil
}

// Delete removes a tier; school links cascade in the schema.
func (r *SalaryBaseRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM salary_bases WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete salary base: %w", err)
	}
	return nil
}

func (r *SalaryBaseRepository) attachSchools(ctx context.Context, tiers []models.SalaryBase) error {
	if len(tiers) == 0 {
		return nil
	}
	ids := make([]int64, len(tiers))
	for i, tier := range tiers {
		ids[i] = tier.ID
	}
	var links []models.SalaryBaseSchool
	const query = `SELECT salary_base_id, school_id FROM salary_base_schools WHERE salary_base_id = ANY($1) ORDER BY school_id ASC`
	if err := r.db.SelectContext(ctx, &links, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list salary base schools: %w", err)
	}
	bySalaryBase := make(map[int64][]int64, len(tiers))
	for _, link := range links {
		bySalaryBase[link.SalaryBaseID] = append(bySalaryBase[link.SalaryBaseID], link.SchoolID)
	}
	for i := range tiers {
		tiers[i].SchoolIDs = bySalaryBase[tiers[i].ID]
		if tiers[i].SchoolIDs == nil {
			tiers[i].SchoolIDs = []int64{}
		}
	}
	return nil
}

func insertSchoolLinks(ctx context.Context, tx *sqlx.Tx, salaryBaseID int64, schoolIDs []int64) error {
	const query = `INSERT INTO salary_base_schools (salary_base_id, school_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, schoolID := range schoolIDs {
		if _, err := tx.ExecContext(ctx, query, salaryBaseID, schoolID); err != nil {
			return fmt.Errorf("link salary base %d to school %d: %w", salaryBaseID, schoolID, err)
		}
	}
	return nil
}
