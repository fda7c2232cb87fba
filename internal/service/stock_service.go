package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
)

type stockRepository interface {
	List(ctx context.Context, filter models.StockFilter) ([]models.StockItem, int, error)
	Upsert(ctx context.Context, item *models.StockItem) error
}

type stockFacilityRepository interface {
	FindByName(ctx context.Context, name string) (*models.HealthFacility, error)
}

// StockService manages vaccine stock levels. Facility staff read their own
// facility's stock; writing is an administrator concern.
type StockService struct {
	repo       stockRepository
	facilities stockFacilityRepository
	audits     facilityAuditRepository
	scope      *ScopeResolver
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    decisionRecorder
}

// NewStockService constructs a StockService instance.
func NewStockService(repo stockRepository, facilities stockFacilityRepository, audits facilityAuditRepository, scope *ScopeResolver, validate *validator.Validate, logger *zap.Logger, metrics decisionRecorder) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StockService{
		repo:       repo,
		facilities: facilities,
		audits:     audits,
		scope:      scope,
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
	}
}

func (s *StockService) record(d authz.Decision) authz.Decision {
	if s.metrics != nil {
		s.metrics.RecordDecision(d.Allowed)
	}
	return d
}

// List returns the stock rows the actor's scope admits.
func (s *StockService) List(ctx context.Context, actor authz.Actor, filter models.StockFilter) ([]models.StockItem, int, error) {
	scope, err := authz.ScopeFor(ctx, actor, authz.EntityStock, authz.ScopeHintNone, s.scope.Lookup())
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}

	if scope.MatchNone {
		filter.MatchNone = true
	}
	if scope.Region != "" {
		filter.Region = scope.Region
	}
	if scope.Facility != "" {
		filter.Facility = scope.Facility
	}
	if len(scope.Facilities) > 0 {
		filter.Facilities = scope.Facilities
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stock")
	}
	return items, total, nil
}

// Upsert sets the stock level for one vaccine at one facility.
func (s *StockService) Upsert(ctx context.Context, actor authz.Actor, req models.UpsertStockRequest) (*models.StockItem, error) {
	// Facility administrators write their own facility only.
	if rank, ok := actor.Rank(); ok && rank >= authz.RankFacilityAdmin {
		req.Facility = actor.Facility
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stock payload")
	}

	facility, err := s.facilities.FindByName(ctx, req.Facility)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facility")
	}
	if facility == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "facility not found")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionUpdate, authz.Target{
		Type:     authz.EntityStock,
		Region:   facility.Region,
		Facility: facility.Name,
	}))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	item := &models.StockItem{
		Facility:    facility.Name,
		Region:      facility.Region,
		Vaccine:     req.Vaccine,
		DosesOnHand: req.DosesOnHand,
		Threshold:   req.Threshold,
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update stock")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"facility":      item.Facility,
		"vaccine":       item.Vaccine,
		"doses_on_hand": item.DosesOnHand,
	})
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionStockUpdate,
		Resource:   "stock_items",
		ResourceID: &item.ID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err))
	}

	return item, nil
}
