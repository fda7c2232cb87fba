package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

// ErrFacilityNameTaken reports that the conditional insert found the
// facility name already used within the region.
var ErrFacilityNameTaken = errors.New("facility name already used in region")

const facilityColumns = `id, name, region, type, parent_district, address, phone, active, created_at, updated_at`

// FacilityRepository provides database access for health facilities.
type FacilityRepository struct {
	db *sqlx.DB
}

// NewFacilityRepository creates a new instance of FacilityRepository.
func NewFacilityRepository(db *sqlx.DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// FindByID returns a facility by identifier.
func (r *FacilityRepository) FindByID(ctx context.Context, id string) (*models.HealthFacility, error) {
	const query = `SELECT ` + facilityColumns + ` FROM health_facilities WHERE id = $1 LIMIT 1`
	var facility models.HealthFacility
	if err := r.db.GetContext(ctx, &facility, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find facility by id: %w", err)
	}
	return &facility, nil
}

// FindByName returns the active facility with the given name, or (nil, nil)
// when no such facility exists. Callers that treat absence as a soft
// condition rely on the nil-nil contract.
func (r *FacilityRepository) FindByName(ctx context.Context, name string) (*models.HealthFacility, error) {
	const query = `SELECT ` + facilityColumns + ` FROM health_facilities WHERE name = $1 AND active = TRUE LIMIT 1`
	var facility models.HealthFacility
	if err := r.db.GetContext(ctx, &facility, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find facility by name: %w", err)
	}
	return &facility, nil
}

// NamesUnderDistrict returns the names of active facilities supervised by
// the district facility, the district facility itself included.
func (r *FacilityRepository) NamesUnderDistrict(ctx context.Context, district string) ([]string, error) {
	const query = `SELECT name FROM health_facilities WHERE active = TRUE AND (name = $1 OR parent_district = $1) ORDER BY name`
	names := []string{}
	if err := r.db.SelectContext(ctx, &names, query, district); err != nil {
		return nil, fmt.Errorf("list facilities under district: %w", err)
	}
	return names, nil
}

// List returns facilities based on filters with total count.
func (r *FacilityRepository) List(ctx context.Context, filter models.FacilityFilter) ([]models.HealthFacility, int, error) {
	if filter.MatchNone {
		return []models.HealthFacility{}, 0, nil
	}

	baseQuery := `FROM health_facilities WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.ParentDistrict != "" {
		conditions = append(conditions, fmt.Sprintf("(name = $%d OR parent_district = $%d)", len(args)+1, len(args)+1))
		args = append(args, filter.ParentDistrict)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"region":     true,
		"type":       true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", facilityColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var facilities []models.HealthFacility
	if err := r.db.SelectContext(ctx, &facilities, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list facilities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count facilities: %w", err)
	}

	return facilities, total, nil
}

// NameTaken reports whether an active facility with the name exists in the
// region.
func (r *FacilityRepository) NameTaken(ctx context.Context, region, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM health_facilities WHERE region = $1 AND name = $2 AND active = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, region, name); err != nil {
		return false, fmt.Errorf("check facility name: %w", err)
	}
	return exists, nil
}

// Create inserts a facility only if its name is still free within the
// region. The check and the insert run as one statement.
func (r *FacilityRepository) Create(ctx context.Context, facility *models.HealthFacility) error {
	if facility.ID == "" {
		facility.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if facility.CreatedAt.IsZero() {
		facility.CreatedAt = now
	}
	facility.UpdatedAt = now

	const query = `INSERT INTO health_facilities (` + facilityColumns + `)
		SELECT :id, :name, :region, :type, :parent_district, :address, :phone, :active, :created_at, :updated_at
		WHERE NOT EXISTS (SELECT 1 FROM health_facilities WHERE region = :region AND name = :name AND active = TRUE)`
	res, err := r.db.NamedExecContext(ctx, query, facility)
	if err != nil {
		return fmt.Errorf("create facility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create facility rows affected: %w", err)
	}
	if affected == 0 {
		return ErrFacilityNameTaken
	}
	return nil
}

// Update updates mutable fields of a facility.
func (r *FacilityRepository) Update(ctx context.Context, facility *models.HealthFacility) error {
	facility.UpdatedAt = time.Now().UTC()
	const query = `UPDATE health_facilities SET type = :type, parent_district = :parent_district, address = :address, phone = :phone, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, facility); err != nil {
		return fmt.Errorf("update facility: %w", err)
	}
	return nil
}

// Delete performs a soft delete by marking the facility inactive.
func (r *FacilityRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE health_facilities SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete facility: %w", err)
	}
	return nil
}
