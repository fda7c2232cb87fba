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

const stockColumns = `id, facility, region, vaccine, doses_on_hand, threshold, updated_at, created_at`

// StockRepository provides database access for vaccine stock levels.
type StockRepository struct {
	db *sqlx.DB
}

// NewStockRepository creates a new instance of StockRepository.
func NewStockRepository(db *sqlx.DB) *StockRepository {
	return &StockRepository{db: db}
}

// FindByID returns a stock item by identifier.
func (r *StockRepository) FindByID(ctx context.Context, id string) (*models.StockItem, error) {
	const query = `SELECT ` + stockColumns + ` FROM stock_items WHERE id = $1 LIMIT 1`
	var item models.StockItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find stock item: %w", err)
	}
	return &item, nil
}

// List returns stock items based on filters with total count.
func (r *StockRepository) List(ctx context.Context, filter models.StockFilter) ([]models.StockItem, int, error) {
	if filter.MatchNone {
		return []models.StockItem{}, 0, nil
	}

	baseQuery := `FROM stock_items WHERE 1=1`
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
	if filter.Vaccine != "" {
		conditions = append(conditions, fmt.Sprintf("vaccine = $%d", len(args)+1))
		args = append(args, filter.Vaccine)
	}
	if filter.BelowThreshold {
		conditions = append(conditions, "doses_on_hand < threshold")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY facility, vaccine LIMIT %d OFFSET %d", stockColumns, baseQuery, pageSize, offset)

	var items []models.StockItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list stock items: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count stock items: %w", err)
	}

	return items, total, nil
}

// Upsert creates or replaces the stock row for a facility and vaccine pair.
func (r *StockRepository) Upsert(ctx context.Context, item *models.StockItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO stock_items (` + stockColumns + `)
		VALUES (:id, :facility, :region, :vaccine, :doses_on_hand, :threshold, :updated_at, :created_at)
		ON CONFLICT (facility, vaccine) DO UPDATE
		SET doses_on_hand = EXCLUDED.doses_on_hand, threshold = EXCLUDED.threshold, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("upsert stock item: %w", err)
	}
	return nil
}

// CountBelowThreshold returns the number of stock rows under their
// threshold among the facilities admitted by the filter.
func (r *StockRepository) CountBelowThreshold(ctx context.Context, filter models.StockFilter) (int, error) {
	if filter.MatchNone {
		return 0, nil
	}
	filter.BelowThreshold = true
	filter.Page = 1
	filter.PageSize = 1
	_, total, err := r.List(ctx, filter)
	return total, err
}
