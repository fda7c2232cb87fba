package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	"github.com/modoudou1/vaxcare-api/internal/repository"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
)

type regionRepository interface {
	List(ctx context.Context) ([]models.Region, error)
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, region *models.Region) error
}

// RegionService manages administrative regions. Mutations are national-only;
// every ranked actor may list.
type RegionService struct {
	repo      regionRepository
	audits    facilityAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   decisionRecorder
}

// NewRegionService constructs a RegionService instance.
func NewRegionService(repo regionRepository, audits facilityAuditRepository, validate *validator.Validate, logger *zap.Logger, metrics decisionRecorder) *RegionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RegionService{repo: repo, audits: audits, validator: validate, logger: logger, metrics: metrics}
}

// List returns all active regions visible to the actor.
func (s *RegionService) List(ctx context.Context, actor authz.Actor) ([]models.Region, error) {
	decision := authz.Authorize(actor, authz.ActionRead, authz.Target{Type: authz.EntityRegions})
	if s.metrics != nil {
		s.metrics.RecordDecision(decision.Allowed)
	}
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	regions, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list regions")
	}
	return regions, nil
}

// Create registers a new region. National only.
func (s *RegionService) Create(ctx context.Context, actor authz.Actor, req models.CreateRegionRequest) (*models.Region, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid region payload")
	}

	decision := authz.Authorize(actor, authz.ActionCreate, authz.Target{Type: authz.EntityRegions})
	if s.metrics != nil {
		s.metrics.RecordDecision(decision.Allowed)
	}
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	region := &models.Region{Name: req.Name, Active: true}
	if err := s.repo.Create(ctx, region); err != nil {
		if errors.Is(err, repository.ErrRegionNameTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a region with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create region")
	}

	payload, _ := json.Marshal(map[string]string{"name": region.Name})
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionRegionCreate,
		Resource:   "regions",
		ResourceID: &region.ID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err))
	}

	s.logger.Info("region created", zap.String("name", region.Name), zap.String("created_by", actor.ID))
	return region, nil
}
