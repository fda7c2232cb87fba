// Package authz implements the hierarchical role-based access control and
// organizational scoping rules of the vaccination program. It decides who may
// create, read, update or delete which entities, resolves legacy user records
// into a concrete hierarchy position, and derives the query filters bounding
// what each actor may list. The package performs no I/O of its own; facility
// lookups and uniqueness checks are injected as read-only functions.
package authz

import "github.com/modoudou1/vaxcare-api/internal/models"

// Rank is a position in the fixed role hierarchy. Lower values carry more
// authority.
type Rank int

const (
	RankNational Rank = iota
	RankRegional
	RankDistrict
	RankFacilityAdmin
	RankFacilityStaff
)

// String returns the canonical name of the rank.
func (r Rank) String() string {
	switch r {
	case RankNational:
		return "national"
	case RankRegional:
		return "regional"
	case RankDistrict:
		return "district"
	case RankFacilityAdmin:
		return "facility_admin"
	case RankFacilityStaff:
		return "facility_staff"
	}
	return "unranked"
}

// RankOf maps a stored role/sub-level pair onto a hierarchy rank. ok is false
// for end consumers and unknown roles, which hold no management position.
// A legacy agent with an empty sub-level ranks as facility_admin, matching
// the degraded-resolution default applied when its facility cannot be looked
// up.
func RankOf(role models.Role, sub models.SubLevel) (Rank, bool) {
	switch role {
	case models.RoleNational:
		return RankNational, true
	case models.RoleRegional:
		return RankRegional, true
	case models.RoleDistrict:
		return RankDistrict, true
	case models.RoleAgent:
		switch sub {
		case models.SubLevelDistrict:
			return RankDistrict, true
		case models.SubLevelFacilityStaff:
			return RankFacilityStaff, true
		case models.SubLevelFacilityAdmin, models.SubLevelNone:
			return RankFacilityAdmin, true
		}
	}
	return 0, false
}

// ParentRank returns the rank directly above r. ok is false for the national
// rank, which has no parent.
func ParentRank(r Rank) (Rank, bool) {
	if r <= RankNational || r > RankFacilityStaff {
		return 0, false
	}
	return r - 1, true
}

// SubordinateRank returns the rank directly below r, the only rank r may
// delegate creation to. ok is false for facility_staff, the bottom of the
// hierarchy.
func SubordinateRank(r Rank) (Rank, bool) {
	if r < RankNational || r >= RankFacilityStaff {
		return 0, false
	}
	return r + 1, true
}
