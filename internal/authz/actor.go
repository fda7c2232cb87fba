package authz

import (
	"context"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

// Actor is the resolved identity used for authorization decisions. Role and
// SubLevel are canonical after resolution: a district-facility agent carries
// RoleDistrict, all other agents carry RoleAgent with an explicit sub-level.
// For a district actor, Facility holds the district facility's own name; for
// facility-level actors it holds the employing facility's name.
type Actor struct {
	ID       string
	Role     models.Role
	SubLevel models.SubLevel
	Region   string
	Facility string
}

// Rank returns the actor's hierarchy rank. ok is false for end consumers.
func (a Actor) Rank() (Rank, bool) {
	return RankOf(a.Role, a.SubLevel)
}

// FacilityLookup fetches a health facility by name. It returns (nil, nil)
// when no facility matches. Errors are tolerated by ResolveActor per the
// degraded-resolution policy.
type FacilityLookup func(ctx context.Context, name string) (*models.HealthFacility, error)

// MigrationPatch is the rewrite upgrading an ambiguous legacy record to the
// canonical representation. The caller persists it; SubLevelNone means the
// stored sub_level must be cleared.
type MigrationPatch struct {
	UserID   string
	Role     models.Role
	SubLevel models.SubLevel
}

// ResolveActor turns a stored user record into a canonical Actor. When the
// record uses the pre-district legacy representation it also returns the
// one-time migration patch the caller must persist. Re-running on an already
// canonical record returns no patch, and the rewrite only ever moves records
// from ambiguous to canonical, never the reverse.
//
// A failed or impossible facility lookup leaves the stored record untouched
// and the actor falls back to facility_admin semantics for this resolution.
// This tolerance mirrors the historical behavior: agents created before
// sub-levels existed are presumed facility administrators. Staff accounts
// from that era are misclassified by the default; see DESIGN.md.
func ResolveActor(ctx context.Context, u *models.User, lookup FacilityLookup) (Actor, *MigrationPatch) {
	actor := Actor{
		ID:       u.ID,
		Role:     u.Role,
		SubLevel: u.SubLevel,
		Region:   u.Region,
		Facility: u.Facility,
	}

	if u.Role != models.RoleAgent || u.Facility == "" {
		return actor, nil
	}

	if lookup == nil {
		return actor, nil
	}
	facility, err := lookup(ctx, u.Facility)
	if err != nil || facility == nil {
		// Degraded resolution: authentication must not abort on a failed
		// facility lookup.
		return actor, nil
	}

	if facility.Type == models.FacilityTypeDistrict {
		actor.Role = models.RoleDistrict
		actor.SubLevel = models.SubLevelNone
		return actor, &MigrationPatch{UserID: u.ID, Role: models.RoleDistrict, SubLevel: models.SubLevelNone}
	}

	if u.SubLevel == models.SubLevelNone {
		actor.SubLevel = models.SubLevelFacilityAdmin
		return actor, &MigrationPatch{UserID: u.ID, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin}
	}

	return actor, nil
}

// ActorFromClaims rebuilds the Actor carried by an access token. Tokens are
// issued after resolution, so the claims already hold the canonical
// representation and no facility lookup is needed.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	return Actor{
		ID:       claims.UserID,
		Role:     claims.Role,
		SubLevel: claims.SubLevel,
		Region:   claims.Region,
		Facility: claims.Facility,
	}
}
