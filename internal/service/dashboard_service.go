package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
)

type dashboardUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type dashboardFacilityRepository interface {
	List(ctx context.Context, filter models.FacilityFilter) ([]models.HealthFacility, int, error)
}

type dashboardRegionRepository interface {
	List(ctx context.Context) ([]models.Region, error)
}

type dashboardChildRepository interface {
	CountsByFilter(ctx context.Context, filter models.ChildFilter) (children int, doses int, err error)
}

type dashboardStockRepository interface {
	CountBelowThreshold(ctx context.Context, filter models.StockFilter) (int, error)
}

// DashboardService aggregates the scoped counters shown on the landing
// dashboard. Each actor position gets its own cache entry since the scope
// decides what the counters cover.
type DashboardService struct {
	users      dashboardUserRepository
	facilities dashboardFacilityRepository
	regions    dashboardRegionRepository
	children   dashboardChildRepository
	stock      dashboardStockRepository
	scope      *ScopeResolver
	cache      scopeCache
	cacheTTL   time.Duration
	logger     *zap.Logger
	metrics    *MetricsService
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(users dashboardUserRepository, facilities dashboardFacilityRepository, regions dashboardRegionRepository, children dashboardChildRepository, stock dashboardStockRepository, scope *ScopeResolver, cache scopeCache, cacheTTL time.Duration, logger *zap.Logger, metrics *MetricsService) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		users:      users,
		facilities: facilities,
		regions:    regions,
		children:   children,
		stock:      stock,
		scope:      scope,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
		metrics:    metrics,
	}
}

// Summary returns the scoped counters for the actor.
func (s *DashboardService) Summary(ctx context.Context, actor authz.Actor) (*models.DashboardSummary, error) {
	key := dashboardCacheKey(actor)
	if s.cache != nil {
		var cached models.DashboardSummary
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	summary, err := s.build(ctx, actor)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *DashboardService) build(ctx context.Context, actor authz.Actor) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{GeneratedAt: time.Now().UTC()}

	regions, err := s.regions.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count regions")
	}
	summary.Regions = len(regions)

	facilityScope, err := authz.ScopeFor(ctx, actor, authz.EntityFacilities, authz.ScopeHintNone, s.scope.Lookup())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve facility scope")
	}
	facilityFilter := models.FacilityFilter{Page: 1, PageSize: 1, Region: facilityScope.Region, ParentDistrict: facilityScope.ParentDistrict, MatchNone: facilityScope.MatchNone}
	_, facilityTotal, err := s.facilities.List(ctx, facilityFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count facilities")
	}
	summary.Facilities = facilityTotal

	userScope, err := authz.ScopeFor(ctx, actor, authz.EntityUsers, authz.ScopeHintNone, s.scope.Lookup())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve user scope")
	}
	userFilter := models.UserFilter{Page: 1, PageSize: 1}
	applyUserScope(&userFilter, userScope)
	_, userTotal, err := s.users.List(ctx, userFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	summary.Users = userTotal

	recordScope, err := authz.ScopeFor(ctx, actor, authz.EntityChildren, authz.ScopeHintNone, s.scope.Lookup())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve record scope")
	}
	childFilter := models.ChildFilter{}
	applyChildScope(&childFilter, recordScope)
	children, doses, err := s.children.CountsByFilter(ctx, childFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count vaccination records")
	}
	summary.Children = children
	summary.DosesAdministered = doses

	stockFilter := models.StockFilter{
		MatchNone:  recordScope.MatchNone,
		Region:     recordScope.Region,
		Facility:   recordScope.Facility,
		Facilities: recordScope.Facilities,
	}
	below, err := s.stock.CountBelowThreshold(ctx, stockFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count stock")
	}
	summary.StockBelowThreshold = below

	return summary, nil
}

func dashboardCacheKey(actor authz.Actor) string {
	return fmt.Sprintf("dashboard:summary:%s:%s:%s:%s", actor.Role, actor.SubLevel, actor.Region, actor.Facility)
}
