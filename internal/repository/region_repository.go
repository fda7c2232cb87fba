package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

// ErrRegionNameTaken reports that the conditional insert found a region
// with the same name.
var ErrRegionNameTaken = errors.New("region name already exists")

// RegionRepository provides database access for administrative regions.
type RegionRepository struct {
	db *sqlx.DB
}

// NewRegionRepository creates a new instance of RegionRepository.
func NewRegionRepository(db *sqlx.DB) *RegionRepository {
	return &RegionRepository{db: db}
}

// List returns all active regions ordered by name.
func (r *RegionRepository) List(ctx context.Context) ([]models.Region, error) {
	const query = `SELECT id, name, active, created_at, updated_at FROM regions WHERE active = TRUE ORDER BY name`
	regions := []models.Region{}
	if err := r.db.SelectContext(ctx, &regions, query); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return regions, nil
}

// FindByName returns a region by name.
func (r *RegionRepository) FindByName(ctx context.Context, name string) (*models.Region, error) {
	const query = `SELECT id, name, active, created_at, updated_at FROM regions WHERE name = $1 LIMIT 1`
	var region models.Region
	if err := r.db.GetContext(ctx, &region, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find region by name: %w", err)
	}
	return &region, nil
}

// Exists reports whether an active region with the name exists.
func (r *RegionRepository) Exists(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM regions WHERE name = $1 AND active = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("check region: %w", err)
	}
	return exists, nil
}

// Create inserts a region only if the name is still free.
func (r *RegionRepository) Create(ctx context.Context, region *models.Region) error {
	if region.ID == "" {
		region.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if region.CreatedAt.IsZero() {
		region.CreatedAt = now
	}
	region.UpdatedAt = now

	const query = `INSERT INTO regions (id, name, active, created_at, updated_at)
		SELECT :id, :name, :active, :created_at, :updated_at
		WHERE NOT EXISTS (SELECT 1 FROM regions WHERE name = :name AND active = TRUE)`
	res, err := r.db.NamedExecContext(ctx, query, region)
	if err != nil {
		return fmt.Errorf("create region: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create region rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRegionNameTaken
	}
	return nil
}

// Delete performs a soft delete by marking the region inactive.
func (r *RegionRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE regions SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete region: %w", err)
	}
	return nil
}
