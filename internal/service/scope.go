package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
)

type facilitySetRepository interface {
	NamesUnderDistrict(ctx context.Context, district string) ([]string, error)
}

type scopeCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ScopeResolver materializes district facility sets for scope filters,
// backed by a short-lived cache so listing endpoints do not hammer the
// facility table.
type ScopeResolver struct {
	facilities facilitySetRepository
	cache      scopeCache
	ttl        time.Duration
	logger     *zap.Logger
}

// NewScopeResolver constructs a ScopeResolver. The cache may be nil.
func NewScopeResolver(facilities facilitySetRepository, cache scopeCache, ttl time.Duration, logger *zap.Logger) *ScopeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ScopeResolver{facilities: facilities, cache: cache, ttl: ttl, logger: logger}
}

// FacilitySet returns the names of facilities supervised by the district
// facility, the district itself included.
func (r *ScopeResolver) FacilitySet(ctx context.Context, district string) ([]string, error) {
	key := facilitySetCacheKey(district)
	if r.cache != nil {
		var cached []string
		if err := r.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			r.logger.Warn("facility set cache read failed", zap.Error(err))
		}
	}

	names, err := r.facilities.NamesUnderDistrict(ctx, district)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, names, r.ttl); err != nil {
			r.logger.Warn("facility set cache write failed", zap.Error(err))
		}
	}
	return names, nil
}

// Lookup adapts the resolver to the authz facility-set signature.
func (r *ScopeResolver) Lookup() authz.FacilitySetLookup {
	return r.FacilitySet
}

// Invalidate drops every cached facility set. Called after facility
// mutations since any district's subtree may have changed.
func (r *ScopeResolver) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.DeleteByPattern(ctx, "scope:facility_set:*"); err != nil {
		r.logger.Warn("facility set cache invalidation failed", zap.Error(err))
	}
}

func facilitySetCacheKey(district string) string {
	return fmt.Sprintf("scope:facility_set:%s", district)
}

// decisionError maps a deny Decision onto the API error taxonomy.
// Occupied-slot and name-collision denials surface as conflicts, missing
// references as not found, everything else as forbidden.
func decisionError(d authz.Decision) *appErrors.Error {
	switch d.Reason {
	case authz.ReasonRegionalExists, authz.ReasonFacilityAdminExists,
		authz.ReasonDistrictActorExists, authz.ReasonFacilityNameTaken:
		return appErrors.Clone(appErrors.ErrConflict, d.Reason)
	case authz.ReasonRegionNotFound, authz.ReasonParentNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, d.Reason)
	}
	return appErrors.Clone(appErrors.ErrForbidden, d.Reason)
}
