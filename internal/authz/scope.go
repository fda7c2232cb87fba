package authz

import (
	"context"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

// ScopeHint lets facility administrators pick between the two user listings
// they are entitled to. Other ranks ignore it.
type ScopeHint string

const (
	ScopeHintNone   ScopeHint = ""
	ScopeHintAdmins ScopeHint = "admins"
	ScopeHintStaff  ScopeHint = "staff"
)

// ScopeFilter is a conjunction of attribute constraints bounding a list
// query. The zero value is unrestricted. MatchNone short-circuits to an
// empty result set: it is set instead of an empty Facilities slice so an
// unconstrained IN () can never be misread as unconstrained.
type ScopeFilter struct {
	MatchNone      bool
	ID             string
	Role           models.Role
	SubLevel       models.SubLevel
	Region         string
	Facility       string
	Facilities     []string
	ParentDistrict string
}

// Unrestricted reports whether the filter constrains nothing.
func (f ScopeFilter) Unrestricted() bool {
	return !f.MatchNone && f.ID == "" && f.Role == "" && f.SubLevel == "" &&
		f.Region == "" && f.Facility == "" && len(f.Facilities) == 0 && f.ParentDistrict == ""
}

// FacilitySetLookup returns the names of every facility supervised by the
// named district facility.
type FacilitySetLookup func(ctx context.Context, district string) ([]string, error)

// ScopeFor derives the filter bounding which entities of a type the actor
// may list. The lookup is only consulted for district-rank actors; its
// failure is a fatal error, never an unbounded filter.
func ScopeFor(ctx context.Context, actor Actor, entity EntityType, hint ScopeHint, under FacilitySetLookup) (ScopeFilter, error) {
	rank, ranked := actor.Rank()
	if !ranked {
		// End consumers only ever see themselves.
		return ScopeFilter{ID: actor.ID}, nil
	}

	switch entity {
	case EntityUsers:
		return scopeUsers(ctx, actor, rank, hint, under)
	case EntityFacilities:
		return scopeFacilities(actor, rank), nil
	case EntityChildren, EntityVaccines, EntityStock:
		return scopeFacilityRecords(ctx, actor, rank, under)
	}
	return ScopeFilter{MatchNone: true}, nil
}

func scopeUsers(ctx context.Context, actor Actor, rank Rank, hint ScopeHint, under FacilitySetLookup) (ScopeFilter, error) {
	switch rank {
	case RankNational:
		return ScopeFilter{}, nil

	case RankRegional:
		return ScopeFilter{Role: models.RoleDistrict, Region: actor.Region}, nil

	case RankDistrict:
		return districtUserScope(ctx, actor, under)

	case RankFacilityAdmin:
		switch hint {
		case ScopeHintAdmins:
			filter, err := districtUserScope(ctx, actor, under)
			if err != nil {
				return ScopeFilter{}, err
			}
			filter.SubLevel = models.SubLevelFacilityAdmin
			return filter, nil
		case ScopeHintStaff:
			return ScopeFilter{
				Role:     models.RoleAgent,
				Region:   actor.Region,
				Facility: actor.Facility,
				SubLevel: models.SubLevelFacilityStaff,
			}, nil
		}
		// Historical default: an agent without an explicit scope request
		// sees only itself.
		return ScopeFilter{ID: actor.ID}, nil

	case RankFacilityStaff:
		return ScopeFilter{ID: actor.ID}, nil
	}
	return ScopeFilter{ID: actor.ID}, nil
}

func districtUserScope(ctx context.Context, actor Actor, under FacilitySetLookup) (ScopeFilter, error) {
	facilities, err := facilitiesUnder(ctx, actor.Facility, under)
	if err != nil {
		return ScopeFilter{}, err
	}
	if len(facilities) == 0 {
		return ScopeFilter{MatchNone: true}, nil
	}
	return ScopeFilter{
		Role:       models.RoleAgent,
		Region:     actor.Region,
		Facilities: facilities,
	}, nil
}

func scopeFacilities(actor Actor, rank Rank) ScopeFilter {
	switch rank {
	case RankRegional:
		return ScopeFilter{Region: actor.Region}
	case RankDistrict:
		return ScopeFilter{ParentDistrict: actor.Facility}
	}
	// National and facility-level ranks list facilities unrestricted; their
	// read authorization already covers the collection.
	return ScopeFilter{}
}

func scopeFacilityRecords(ctx context.Context, actor Actor, rank Rank, under FacilitySetLookup) (ScopeFilter, error) {
	switch rank {
	case RankNational:
		return ScopeFilter{}, nil
	case RankRegional:
		return ScopeFilter{Region: actor.Region}, nil
	case RankDistrict:
		facilities, err := facilitiesUnder(ctx, actor.Facility, under)
		if err != nil {
			return ScopeFilter{}, err
		}
		if len(facilities) == 0 {
			return ScopeFilter{MatchNone: true}, nil
		}
		return ScopeFilter{Region: actor.Region, Facilities: facilities}, nil
	case RankFacilityAdmin, RankFacilityStaff:
		return ScopeFilter{Region: actor.Region, Facility: actor.Facility}, nil
	}
	return ScopeFilter{MatchNone: true}, nil
}

func facilitiesUnder(ctx context.Context, district string, under FacilitySetLookup) ([]string, error) {
	if under == nil || district == "" {
		return nil, nil
	}
	return under(ctx, district)
}
