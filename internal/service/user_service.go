package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	"github.com/modoudou1/vaxcare-api/internal/repository"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	CreateRegional(ctx context.Context, user *models.User) error
	CreateDistrictActor(ctx context.Context, user *models.User) error
	CreateFacilityAdmin(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	HasRegionalAdmin(ctx context.Context, region string) (bool, error)
	HasFacilityAdmin(ctx context.Context, region, facility string) (bool, error)
	HasDistrictActor(ctx context.Context, facility string) (bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type userFacilityRepository interface {
	FindByName(ctx context.Context, name string) (*models.HealthFacility, error)
}

type userRegionRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// UserService orchestrates user management: every operation runs the
// authorization rules first, then the scope filter or delegation resolver,
// and only then touches storage.
type UserService struct {
	repo       userRepository
	facilities userFacilityRepository
	regions    userRegionRepository
	scope      *ScopeResolver
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    decisionRecorder
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, facilities userFacilityRepository, regions userRegionRepository, scope *ScopeResolver, validate *validator.Validate, logger *zap.Logger, metrics decisionRecorder) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:       repo,
		facilities: facilities,
		regions:    regions,
		scope:      scope,
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
	}
}

func (s *UserService) record(d authz.Decision) authz.Decision {
	if s.metrics != nil {
		s.metrics.RecordDecision(d.Allowed)
	}
	return d
}

// List returns the users the actor's scope admits, further narrowed by the
// request filter.
func (s *UserService) List(ctx context.Context, actor authz.Actor, hint authz.ScopeHint, filter models.UserFilter) ([]models.User, int, error) {
	scope, err := authz.ScopeFor(ctx, actor, authz.EntityUsers, hint, s.scope.Lookup())
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}

	applyUserScope(&filter, scope)

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

func applyUserScope(filter *models.UserFilter, scope authz.ScopeFilter) {
	if scope.MatchNone {
		filter.MatchNone = true
		return
	}
	if scope.ID != "" {
		filter.ID = scope.ID
	}
	if scope.Role != "" {
		role := scope.Role
		filter.Role = &role
	}
	if scope.SubLevel != "" {
		sub := scope.SubLevel
		filter.SubLevel = &sub
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

// Get returns one user if the actor may read it.
func (s *UserService) Get(ctx context.Context, actor authz.Actor, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionRead, userTarget(user)))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}
	return user, nil
}

// Create creates a subordinate account one rank below the actor. The
// delegation resolver decides the final attributes; the conditional insert
// closes the remaining race on the uniqueness invariants.
func (s *UserService) Create(ctx context.Context, actor authz.Actor, req models.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	attrs, decision, err := authz.ResolveUserCreation(ctx, actor, authz.UserAttributes{
		Role:     req.Role,
		SubLevel: req.SubLevel,
		Region:   req.Region,
		Facility: req.Facility,
	}, s.delegationDeps())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve delegation")
	}
	s.record(decision)
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         attrs.Role,
		SubLevel:     attrs.SubLevel,
		Region:       attrs.Region,
		Facility:     attrs.Facility,
		Active:       true,
	}

	if err := s.insertByRole(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUniqueRoleViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the role slot for this position is already occupied")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit(ctx, actor.ID, models.AuditActionUserCreate, user.ID, map[string]string{
		"email":     user.Email,
		"role":      string(user.Role),
		"sub_level": string(user.SubLevel),
		"region":    user.Region,
		"facility":  user.Facility,
	})

	s.logger.Info("user created",
		zap.String("id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("created_by", actor.ID))
	return user, nil
}

func (s *UserService) insertByRole(ctx context.Context, user *models.User) error {
	switch {
	case user.Role == models.RoleRegional:
		return s.repo.CreateRegional(ctx, user)
	case user.Role == models.RoleDistrict:
		return s.repo.CreateDistrictActor(ctx, user)
	case user.Role == models.RoleAgent && user.SubLevel == models.SubLevelFacilityAdmin:
		return s.repo.CreateFacilityAdmin(ctx, user)
	}
	return s.repo.Create(ctx, user)
}

func (s *UserService) delegationDeps() authz.Deps {
	return authz.Deps{
		FacilityByName:   s.facilities.FindByName,
		RegionExists:     s.regions.Exists,
		HasRegionalAdmin: s.repo.HasRegionalAdmin,
		HasFacilityAdmin: s.repo.HasFacilityAdmin,
		HasDistrictActor: s.repo.HasDistrictActor,
	}
}

// Update updates a user if the actor may modify it. Self-updates are always
// permitted; they cannot change role or position.
func (s *UserService) Update(ctx context.Context, actor authz.Actor, id string, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionUpdate, userTarget(user)))
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Active != nil {
		// Deactivating yourself is a footgun, not a permission issue.
		if actor.ID == user.ID && !*req.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "cannot deactivate your own account")
		}
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.audit(ctx, actor.ID, models.AuditActionUserUpdate, user.ID, map[string]string{"email": user.Email})
	return user, nil
}

// Delete deactivates a user if the actor may delete it.
func (s *UserService) Delete(ctx context.Context, actor authz.Actor, id string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	decision := s.record(authz.Authorize(actor, authz.ActionDelete, userTarget(user)))
	if !decision.Allowed {
		return decisionError(decision)
	}

	if actor.ID == user.ID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete your own account")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.audit(ctx, actor.ID, models.AuditActionUserDelete, user.ID, map[string]string{"email": user.Email})
	return nil
}

func (s *UserService) audit(ctx context.Context, actorID, action, resourceID string, values map[string]string) {
	payload, _ := json.Marshal(values)
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func userTarget(user *models.User) authz.Target {
	return authz.Target{
		Type:     authz.EntityUsers,
		ID:       user.ID,
		Role:     user.Role,
		SubLevel: user.SubLevel,
		Region:   user.Region,
		Facility: user.Facility,
	}
}
