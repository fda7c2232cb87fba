package service

import (
	"context"
	"database/sql"
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

type facilityRepository interface {
	FindByID(ctx context.Context, id string) (*models.HealthFacility, error)
	FindByName(ctx context.Context, name string) (*models.HealthFacility, error)
	List(ctx context.Context, filter models.FacilityFilter) ([]models.HealthFacility, int, error)
	NameTaken(ctx context.Context, region, name string) (bool, error)
	Create(ctx context.Context, facility *models.HealthFacility) error
	Update(ctx context.Context, facility *models.HealthFacility) error
	Delete(ctx context.Context, id string) error
}

type facilityRegionRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
}

type facilityAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// FacilityService orchestrates health facility management.
type FacilityService struct {
	repo      facilityRepository
	regions   facilityRegionRepository
	audits    facilityAuditRepository
	scope     *ScopeResolver
	validator *validator.Validate
	logger    *zap.Logger
	metrics   decisionRecorder
}

// NewFacilityService constructs a FacilityService instance.
func NewFacilityService(repo facilityRepository, regions facilityRegionRepository, audits facilityAuditRepository, scope *ScopeResolver, validate *validator.Validate, logger *zap.Logger, metrics decisionRecorder) *FacilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FacilityService{
		repo:      repo,
		regions:   regions,
		audits:    audits,
		scope:     scope,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *FacilityService) record(d authz.Decision) authz.Decision {
	if s.metrics != nil {
		s.metrics.RecordDecision(d.Allowed)
	}
	return d
}

// List returns the facilities the actor's scope admits.
func (s *FacilityService) List(ctx context.Context, actor authz.Actor, filter models.FacilityFilter) ([]models.HealthFacility, int, error) {
	scope, err := authz.ScopeFor(ctx, actor, authz.EntityFacilities, authz.ScopeHintNone, s.scope.Lookup())
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}

	if scope.MatchNone {
		filter.MatchNone = true
	}
	if scope.Region != "" {
		filter.Region = scope.Region
	}
	if scope.ParentDistrict != "" {
		filter.ParentDistrict = scope.ParentDistrict
	}

	facilities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list facilities")
	}
	return facilities, total, nil
}

// Get returns one facility if the actor may read it.
func (s *FacilityService) Get(ctx context.Context, actor authz.Actor, id string) (*models.HealthFacility, error) {
	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "facility not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facility")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionRead, facilityTarget(facility)))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}
	return facility, nil
}

// Create registers a new facility. The delegation resolver forces region and
// parent for non-national callers and validates all references; the
// conditional insert closes the remaining name race.
func (s *FacilityService) Create(ctx context.Context, actor authz.Actor, req models.CreateFacilityRequest) (*models.HealthFacility, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid facility payload")
	}
	if !models.ValidFacilityType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown facility type")
	}

	attrs, decision, err := authz.ResolveFacilityCreation(ctx, actor, authz.FacilityAttributes{
		Name:           req.Name,
		Region:         req.Region,
		Type:           req.Type,
		ParentDistrict: req.ParentDistrict,
	}, authz.Deps{
		FacilityByName:    s.repo.FindByName,
		RegionExists:      s.regions.Exists,
		FacilityNameTaken: s.repo.NameTaken,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve facility creation")
	}
	s.record(decision)
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	facility := &models.HealthFacility{
		Name:           attrs.Name,
		Region:         attrs.Region,
		Type:           attrs.Type,
		ParentDistrict: attrs.ParentDistrict,
		Address:        req.Address,
		Phone:          req.Phone,
		Active:         true,
	}

	if err := s.repo.Create(ctx, facility); err != nil {
		if errors.Is(err, repository.ErrFacilityNameTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, authz.ReasonFacilityNameTaken)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create facility")
	}

	s.scope.Invalidate(ctx)
	s.audit(ctx, actor.ID, models.AuditActionFacilityCreate, facility.ID, map[string]string{
		"name":   facility.Name,
		"region": facility.Region,
		"type":   string(facility.Type),
	})

	s.logger.Info("facility created",
		zap.String("id", facility.ID),
		zap.String("name", facility.Name),
		zap.String("created_by", actor.ID))
	return facility, nil
}

// Update updates a facility if the actor may modify it.
func (s *FacilityService) Update(ctx context.Context, actor authz.Actor, id string, req models.UpdateFacilityRequest) (*models.HealthFacility, error) {
	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "facility not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facility")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionUpdate, facilityTarget(facility)))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	prior := authz.FacilityAttributes{
		Name:           facility.Name,
		Region:         facility.Region,
		Type:           facility.Type,
		ParentDistrict: facility.ParentDistrict,
	}

	if req.Type != nil {
		if !models.ValidFacilityType(*req.Type) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown facility type")
		}
		facility.Type = *req.Type
	}
	if req.ParentDistrict != nil {
		facility.ParentDistrict = *req.ParentDistrict
	}
	if req.Address != nil {
		facility.Address = *req.Address
	}
	if req.Phone != nil {
		facility.Phone = *req.Phone
	}
	if req.Active != nil {
		facility.Active = *req.Active
	}

	// The patched record must still satisfy the structural rules enforced
	// at creation: no nested districts, no dangling or cross-region parent.
	patched := authz.FacilityAttributes{
		Name:           facility.Name,
		Region:         facility.Region,
		Type:           facility.Type,
		ParentDistrict: facility.ParentDistrict,
	}
	decision, err = authz.ResolveFacilityUpdate(ctx, actor, prior, patched, authz.Deps{
		FacilityByName: s.repo.FindByName,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve facility update")
	}
	s.record(decision)
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	if err := s.repo.Update(ctx, facility); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update facility")
	}

	s.scope.Invalidate(ctx)
	s.audit(ctx, actor.ID, models.AuditActionFacilityUpdate, facility.ID, map[string]string{"name": facility.Name})
	return facility, nil
}

// Delete deactivates a facility if the actor may delete it.
func (s *FacilityService) Delete(ctx context.Context, actor authz.Actor, id string) error {
	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "facility not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facility")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionDelete, facilityTarget(facility)))
	if !decision.Allowed {
		return decisionError(decision)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete facility")
	}

	s.scope.Invalidate(ctx)
	s.audit(ctx, actor.ID, models.AuditActionFacilityDelete, facility.ID, map[string]string{"name": facility.Name})
	return nil
}

func (s *FacilityService) audit(ctx context.Context, actorID, action, resourceID string, values map[string]string) {
	payload, _ := json.Marshal(values)
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "health_facilities",
		ResourceID: &resourceID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func facilityTarget(facility *models.HealthFacility) authz.Target {
	return authz.Target{
		Type:           authz.EntityFacilities,
		ID:             facility.ID,
		Region:         facility.Region,
		Facility:       facility.Name,
		FacilityType:   facility.Type,
		ParentDistrict: facility.ParentDistrict,
	}
}
