package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
	"github.com/modoudou1/vaxcare-api/pkg/export"
)

type childRepository interface {
	FindByID(ctx context.Context, id string) (*models.Child, error)
	List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error)
	Create(ctx context.Context, child *models.Child) error
	Update(ctx context.Context, child *models.Child) error
	Delete(ctx context.Context, id string) error
	CreateVaccinationRecord(ctx context.Context, record *models.VaccinationRecord) error
	VaccinationRecordsByChild(ctx context.Context, childID string) ([]models.VaccinationRecord, error)
}

// ChildService manages enrolled children and their vaccination records.
// Register and update are open to every ranked actor within their own
// containment; deletion stays with national and regional.
type ChildService struct {
	repo      childRepository
	scope     *ScopeResolver
	validator *validator.Validate
	logger    *zap.Logger
	metrics   decisionRecorder
}

// NewChildService constructs a ChildService instance.
func NewChildService(repo childRepository, scope *ScopeResolver, validate *validator.Validate, logger *zap.Logger, metrics decisionRecorder) *ChildService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChildService{repo: repo, scope: scope, validator: validate, logger: logger, metrics: metrics}
}

func (s *ChildService) record(d authz.Decision) authz.Decision {
	if s.metrics != nil {
		s.metrics.RecordDecision(d.Allowed)
	}
	return d
}

// List returns the children the actor's scope admits.
func (s *ChildService) List(ctx context.Context, actor authz.Actor, filter models.ChildFilter) ([]models.Child, int, error) {
	scope, err := authz.ScopeFor(ctx, actor, authz.EntityChildren, authz.ScopeHintNone, s.scope.Lookup())
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}

	applyChildScope(&filter, scope)

	children, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	return children, total, nil
}

func applyChildScope(filter *models.ChildFilter, scope authz.ScopeFilter) {
	if scope.MatchNone {
		filter.MatchNone = true
		return
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
}

// Get returns one child if the actor may read it.
func (s *ChildService) Get(ctx context.Context, actor authz.Actor, id string) (*models.Child, error) {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionRead, childTarget(child)))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}
	return child, nil
}

// Create enrolls a child at a facility within the actor's containment.
// Facility-level actors have region and facility forced from their own
// position.
func (s *ChildService) Create(ctx context.Context, actor authz.Actor, req models.CreateChildRequest) (*models.Child, error) {
	if rank, ok := actor.Rank(); ok && rank >= authz.RankFacilityAdmin {
		req.Region = actor.Region
		req.Facility = actor.Facility
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid child payload")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionCreate, authz.Target{
		Type:     authz.EntityChildren,
		Region:   req.Region,
		Facility: req.Facility,
	}))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	child := &models.Child{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Sex:             req.Sex,
		BirthDate:       req.BirthDate,
		GuardianName:    req.GuardianName,
		GuardianContact: req.GuardianContact,
		Region:          req.Region,
		Facility:        req.Facility,
	}
	if err := s.repo.Create(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll child")
	}

	s.logger.Info("child enrolled", zap.String("id", child.ID), zap.String("facility", child.Facility))
	return child, nil
}

// Update modifies a child record.
func (s *ChildService) Update(ctx context.Context, actor authz.Actor, id string, req models.UpdateChildRequest) (*models.Child, error) {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionUpdate, childTarget(child)))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	if req.FirstName != nil {
		child.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		child.LastName = *req.LastName
	}
	if req.Sex != nil {
		child.Sex = *req.Sex
	}
	if req.BirthDate != nil {
		child.BirthDate = *req.BirthDate
	}
	if req.GuardianName != nil {
		child.GuardianName = *req.GuardianName
	}
	if req.GuardianContact != nil {
		child.GuardianContact = *req.GuardianContact
	}

	if err := s.repo.Update(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update child")
	}
	return child, nil
}

// Delete removes a child record along with its vaccination history.
func (s *ChildService) Delete(ctx context.Context, actor authz.Actor, id string) error {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionDelete, childTarget(child)))
	if !decision.Allowed {
		return decisionError(decision)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete child")
	}
	return nil
}

// RecordDose registers an administered dose for a child. The dose is
// attributed to the actor and their facility.
func (s *ChildService) RecordDose(ctx context.Context, actor authz.Actor, childID string, req models.CreateVaccinationRequest) (*models.VaccinationRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vaccination payload")
	}

	child, err := s.repo.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionCreate, authz.Target{
		Type:     authz.EntityVaccines,
		Region:   child.Region,
		Facility: child.Facility,
	}))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	facility := actor.Facility
	if facility == "" {
		facility = child.Facility
	}
	record := &models.VaccinationRecord{
		ChildID:        child.ID,
		Vaccine:        req.Vaccine,
		DoseNumber:     req.DoseNumber,
		AdministeredAt: req.AdministeredAt,
		AdministeredBy: actor.ID,
		Facility:       facility,
	}
	if err := s.repo.CreateVaccinationRecord(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record dose")
	}

	s.logger.Info("dose recorded",
		zap.String("child_id", child.ID),
		zap.String("vaccine", record.Vaccine),
		zap.Int("dose", record.DoseNumber))
	return record, nil
}

// History returns the vaccination records of one child.
func (s *ChildService) History(ctx context.Context, actor authz.Actor, childID string) ([]models.VaccinationRecord, error) {
	child, err := s.repo.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionRead, childTarget(child)))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	records, err := s.repo.VaccinationRecordsByChild(ctx, childID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vaccination records")
	}
	return records, nil
}

// ImmunizationCard renders the child's vaccination history as a PDF card.
func (s *ChildService) ImmunizationCard(ctx context.Context, actor authz.Actor, childID string) ([]byte, string, error) {
	child, err := s.repo.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionRead, childTarget(child)))
	if !decision.Allowed {
		return nil, "", decisionError(decision)
	}

	records, err := s.repo.VaccinationRecordsByChild(ctx, childID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vaccination records")
	}

	data := export.Dataset{Headers: []string{"vaccine", "dose", "administered_at", "facility"}}
	for _, record := range records {
		data.Rows = append(data.Rows, map[string]string{
			"vaccine":         record.Vaccine,
			"dose":            strconv.Itoa(record.DoseNumber),
			"administered_at": record.AdministeredAt.Format("2006-01-02"),
			"facility":        record.Facility,
		})
	}

	title := fmt.Sprintf("Immunization card - %s %s (%s)", child.FirstName, child.LastName, child.BirthDate.Format("2006-01-02"))
	pdf, err := export.NewPDFExporter().Render(data, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render card")
	}

	filename := fmt.Sprintf("immunization-card-%s.pdf", child.ID)
	return pdf, filename, nil
}

func childTarget(child *models.Child) authz.Target {
	return authz.Target{
		Type:     authz.EntityChildren,
		ID:       child.ID,
		Region:   child.Region,
		Facility: child.Facility,
	}
}
