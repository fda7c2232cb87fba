package authz

import (
	"context"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

// Deps bundles the read-only collaborator queries the delegation resolver
// needs. All are injected; the resolver itself never touches storage.
// FacilityByName returns (nil, nil) when no facility matches. A non-nil
// error from any dependency is an infrastructure fault and is propagated,
// not converted into a denial.
type Deps struct {
	FacilityByName    func(ctx context.Context, name string) (*models.HealthFacility, error)
	RegionExists      func(ctx context.Context, name string) (bool, error)
	HasRegionalAdmin  func(ctx context.Context, region string) (bool, error)
	HasFacilityAdmin  func(ctx context.Context, region, facility string) (bool, error)
	HasDistrictActor  func(ctx context.Context, facility string) (bool, error)
	FacilityNameTaken func(ctx context.Context, region, name string) (bool, error)
}

// UserAttributes is the subset of a user record the delegation rules decide.
type UserAttributes struct {
	Role     models.Role
	SubLevel models.SubLevel
	Region   string
	Facility string
}

// ResolveUserCreation determines whether the actor may create the requested
// subordinate and returns the attributes that must be forced onto the new
// record. A deny Decision is a normal outcome; the error return is reserved
// for failing collaborator queries.
//
// The uniqueness checks here fail fast with a readable conflict. The
// persistence layer repeats them as conditional inserts, so two concurrent
// creates racing past this check still produce at most one row.
func ResolveUserCreation(ctx context.Context, actor Actor, req UserAttributes, deps Deps) (UserAttributes, Decision, error) {
	decision := Authorize(actor, ActionCreate, Target{
		Type:     EntityUsers,
		Role:     req.Role,
		SubLevel: req.SubLevel,
		Region:   req.Region,
		Facility: req.Facility,
	})
	if !decision.Allowed {
		return UserAttributes{}, decision, nil
	}

	rank, _ := actor.Rank()
	switch rank {
	case RankNational:
		final := UserAttributes{Role: models.RoleRegional, Region: req.Region}
		if final.Region == "" {
			return UserAttributes{}, Deny(ReasonMissingRegion), nil
		}
		if deps.RegionExists != nil {
			exists, err := deps.RegionExists(ctx, final.Region)
			if err != nil {
				return UserAttributes{}, Decision{}, err
			}
			if !exists {
				return UserAttributes{}, Deny(ReasonRegionNotFound), nil
			}
		}
		if deps.HasRegionalAdmin != nil {
			taken, err := deps.HasRegionalAdmin(ctx, final.Region)
			if err != nil {
				return UserAttributes{}, Decision{}, err
			}
			if taken {
				return UserAttributes{}, Deny(ReasonRegionalExists), nil
			}
		}
		return final, Allow(), nil

	case RankRegional:
		if req.Facility == "" {
			return UserAttributes{}, Deny(ReasonMissingFacility), nil
		}
		facility, err := deps.FacilityByName(ctx, req.Facility)
		if err != nil {
			return UserAttributes{}, Decision{}, err
		}
		if facility == nil || facility.Region != actor.Region {
			return UserAttributes{}, Deny(ReasonFacilityNotInRegion), nil
		}
		if facility.Type != models.FacilityTypeDistrict {
			return UserAttributes{}, Deny(ReasonParentNotDistrict), nil
		}
		if deps.HasDistrictActor != nil {
			taken, err := deps.HasDistrictActor(ctx, facility.Name)
			if err != nil {
				return UserAttributes{}, Decision{}, err
			}
			if taken {
				return UserAttributes{}, Deny(ReasonDistrictActorExists), nil
			}
		}
		return UserAttributes{Role: models.RoleDistrict, Region: actor.Region, Facility: facility.Name}, Allow(), nil

	case RankDistrict:
		final := UserAttributes{
			Role:     models.RoleAgent,
			SubLevel: models.SubLevelFacilityAdmin,
			Region:   actor.Region,
			Facility: actor.Facility,
		}
		if deps.HasFacilityAdmin != nil {
			taken, err := deps.HasFacilityAdmin(ctx, final.Region, final.Facility)
			if err != nil {
				return UserAttributes{}, Decision{}, err
			}
			if taken {
				return UserAttributes{}, Deny(ReasonFacilityAdminExists), nil
			}
		}
		return final, Allow(), nil

	case RankFacilityAdmin:
		return UserAttributes{
			Role:     models.RoleAgent,
			SubLevel: models.SubLevelFacilityStaff,
			Region:   actor.Region,
			Facility: actor.Facility,
		}, Allow(), nil
	}
	return UserAttributes{}, Deny(ReasonInsufficientRole), nil
}

// FacilityAttributes is the subset of a facility record the delegation
// rules decide.
type FacilityAttributes struct {
	Name           string
	Region         string
	Type           models.FacilityType
	ParentDistrict string
}

// ResolveFacilityCreation validates and completes a facility creation
// request. District actors have region and parent forced from their own
// position; national and regional actors supply them explicitly and have
// the references validated.
func ResolveFacilityCreation(ctx context.Context, actor Actor, req FacilityAttributes, deps Deps) (FacilityAttributes, Decision, error) {
	decision := Authorize(actor, ActionCreate, Target{
		Type:           EntityFacilities,
		Region:         req.Region,
		FacilityType:   req.Type,
		ParentDistrict: req.ParentDistrict,
	})
	if !decision.Allowed {
		return FacilityAttributes{}, decision, nil
	}

	final := req
	rank, _ := actor.Rank()
	switch rank {
	case RankRegional:
		final.Region = actor.Region
	case RankDistrict:
		final.Region = actor.Region
		final.ParentDistrict = actor.Facility
	}

	if exists, err := deps.RegionExists(ctx, final.Region); err != nil {
		return FacilityAttributes{}, Decision{}, err
	} else if !exists {
		return FacilityAttributes{}, Deny(ReasonRegionNotFound), nil
	}

	if final.Type != models.FacilityTypeDistrict && final.ParentDistrict != "" {
		parent, err := deps.FacilityByName(ctx, final.ParentDistrict)
		if err != nil {
			return FacilityAttributes{}, Decision{}, err
		}
		if parent == nil {
			return FacilityAttributes{}, Deny(ReasonParentNotFound), nil
		}
		if parent.Type != models.FacilityTypeDistrict {
			return FacilityAttributes{}, Deny(ReasonParentNotDistrict), nil
		}
		if parent.Region != final.Region {
			return FacilityAttributes{}, Deny(ReasonFacilityNotInRegion), nil
		}
	}

	if deps.FacilityNameTaken != nil {
		taken, err := deps.FacilityNameTaken(ctx, final.Region, final.Name)
		if err != nil {
			return FacilityAttributes{}, Decision{}, err
		}
		if taken {
			return FacilityAttributes{}, Deny(ReasonFacilityNameTaken), nil
		}
	}

	return final, Allow(), nil
}

// ResolveFacilityUpdate validates the attributes a facility would carry after
// a patch is applied. The structural rules that guard creation hold across
// the facility's whole lifetime: districts are never nested, and a changed
// parent must be an existing district in the facility's region. District
// actors may only parent facilities to their own district.
func ResolveFacilityUpdate(ctx context.Context, actor Actor, current, patched FacilityAttributes, deps Deps) (Decision, error) {
	if patched.Type == models.FacilityTypeDistrict && patched.ParentDistrict != "" {
		return Deny(ReasonDistrictHasParent), nil
	}
	if patched.ParentDistrict == "" || patched.ParentDistrict == current.ParentDistrict {
		return Allow(), nil
	}

	if rank, _ := actor.Rank(); rank == RankDistrict && patched.ParentDistrict != actor.Facility {
		return Deny(ReasonForcedParent), nil
	}

	parent, err := deps.FacilityByName(ctx, patched.ParentDistrict)
	if err != nil {
		return Decision{}, err
	}
	if parent == nil {
		return Deny(ReasonParentNotFound), nil
	}
	if parent.Type != models.FacilityTypeDistrict {
		return Deny(ReasonParentNotDistrict), nil
	}
	if parent.Region != patched.Region {
		return Deny(ReasonFacilityNotInRegion), nil
	}
	return Allow(), nil
}
