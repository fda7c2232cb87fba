package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

const childColumns = `id, first_name, last_name, sex, birth_date, guardian_name, guardian_contact, region, facility, created_at, updated_at`

// ChildRepository provides database access for children and their
// vaccination records.
type ChildRepository struct {
	db *sqlx.DB
}

// NewChildRepository creates a new instance of ChildRepository.
func NewChildRepository(db *sqlx.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// FindByID returns a child by identifier.
func (r *ChildRepository) FindByID(ctx context.Context, id string) (*models.Child, error) {
	const query = `SELECT ` + childColumns + ` FROM children WHERE id = $1 LIMIT 1`
	var child models.Child
	if err := r.db.GetContext(ctx, &child, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find child by id: %w", err)
	}
	return &child, nil
}

// List returns children based on filters with total count.
func (r *ChildRepository) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error) {
	if filter.MatchNone {
		return []models.Child{}, 0, nil
	}

	baseQuery := `FROM children WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if filter.Facility != "" {
		conditions = append(conditions, fmt.Sprintf("facility = $%d", len(args)+1))
		args = append(args, filter.Facility)
	}
	if len(filter.Facilities) > 0 {
		placeholders := make([]string, len(filter.Facilities))
		for i, name := range filter.Facilities {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, name)
		}
		conditions = append(conditions, fmt.Sprintf("facility IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"last_name":  true,
		"birth_date": true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", childColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var children []models.Child
	if err := r.db.SelectContext(ctx, &children, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list children: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count children: %w", err)
	}

	return children, total, nil
}

// Create inserts a new child record.
func (r *ChildRepository) Create(ctx context.Context, child *models.Child) error {
	if child.ID == "" {
		child.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if child.CreatedAt.IsZero() {
		child.CreatedAt = now
	}
	child.UpdatedAt = now
	const query = `INSERT INTO children (` + childColumns + `) VALUES (:id, :first_name, :last_name, :sex, :birth_date, :guardian_name, :guardian_contact, :region, :facility, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("create child: %w", err)
	}
	return nil
}

// Update updates mutable fields of a child record.
func (r *ChildRepository) Update(ctx context.Context, child *models.Child) error {
	child.UpdatedAt = time.Now().UTC()
	const query = `UPDATE children SET first_name = :first_name, last_name = :last_name, sex = :sex, birth_date = :birth_date, guardian_name = :guardian_name, guardian_contact = :guardian_contact, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("update child: %w", err)
	}
	return nil
}

// Delete removes a child record and its vaccination records.
func (r *ChildRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete child: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vaccination_records WHERE child_id = $1`, id); err != nil {
		return fmt.Errorf("delete vaccination records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM children WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return tx.Commit()
}

// CreateVaccinationRecord inserts an administered-dose record.
func (r *ChildRepository) CreateVaccinationRecord(ctx context.Context, record *models.VaccinationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO vaccination_records (id, child_id, vaccine, dose_number, administered_at, administered_by, facility, created_at) VALUES (:id, :child_id, :vaccine, :dose_number, :administered_at, :administered_by, :facility, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create vaccination record: %w", err)
	}
	return nil
}

// VaccinationRecordsByChild returns all dose records for a child in
// administration order.
func (r *ChildRepository) VaccinationRecordsByChild(ctx context.Context, childID string) ([]models.VaccinationRecord, error) {
	const query = `SELECT id, child_id, vaccine, dose_number, administered_at, administered_by, facility, created_at FROM vaccination_records WHERE child_id = $1 ORDER BY administered_at`
	records := []models.VaccinationRecord{}
	if err := r.db.SelectContext(ctx, &records, query, childID); err != nil {
		return nil, fmt.Errorf("list vaccination records: %w", err)
	}
	return records, nil
}

// CoverageRows aggregates administered doses per region, facility and
// vaccine for the facilities admitted by the filter.
func (r *ChildRepository) CoverageRows(ctx context.Context, filter models.ChildFilter) ([]models.CoverageRow, error) {
	if filter.MatchNone {
		return []models.CoverageRow{}, nil
	}

	baseQuery := `SELECT c.region AS region, v.facility AS facility, v.vaccine AS vaccine,
		COUNT(DISTINCT v.child_id) AS children_total, COUNT(*) AS doses_given
		FROM vaccination_records v JOIN children c ON c.id = v.child_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("c.region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if filter.Facility != "" {
		conditions = append(conditions, fmt.Sprintf("v.facility = $%d", len(args)+1))
		args = append(args, filter.Facility)
	}
	if len(filter.Facilities) > 0 {
		placeholders := make([]string, len(filter.Facilities))
		for i, name := range filter.Facilities {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, name)
		}
		conditions = append(conditions, fmt.Sprintf("v.facility IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY c.region, v.facility, v.vaccine ORDER BY c.region, v.facility, v.vaccine"

	rows := []models.CoverageRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("coverage rows: %w", err)
	}
	return rows, nil
}

// CountsByFilter returns the number of children and administered doses for
// the facilities admitted by the filter. Used by the dashboard summary.
func (r *ChildRepository) CountsByFilter(ctx context.Context, filter models.ChildFilter) (children int, doses int, err error) {
	if filter.MatchNone {
		return 0, 0, nil
	}

	var conditions []string
	var args []interface{}

	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("c.region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if filter.Facility != "" {
		conditions = append(conditions, fmt.Sprintf("c.facility = $%d", len(args)+1))
		args = append(args, filter.Facility)
	}
	if len(filter.Facilities) > 0 {
		placeholders := make([]string, len(filter.Facilities))
		for i, name := range filter.Facilities {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, name)
		}
		conditions = append(conditions, fmt.Sprintf("c.facility IN (%s)", strings.Join(placeholders, ", ")))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	if err = r.db.GetContext(ctx, &children, "SELECT COUNT(*) FROM children c"+where, args...); err != nil {
		return 0, 0, fmt.Errorf("count children: %w", err)
	}
	if err = r.db.GetContext(ctx, &doses, "SELECT COUNT(*) FROM vaccination_records v JOIN children c ON c.id = v.child_id"+where, args...); err != nil {
		return 0, 0, fmt.Errorf("count doses: %w", err)
	}
	return children, doses, nil
}
