package authz

import "github.com/modoudou1/vaxcare-api/internal/models"

// Action is one of the four operations gated by the rule set.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// EntityType names a guarded collection.
type EntityType string

const (
	EntityUsers      EntityType = "users"
	EntityFacilities EntityType = "health_facilities"
	EntityRegions    EntityType = "regions"
	EntityChildren   EntityType = "children"
	EntityVaccines   EntityType = "vaccination_records"
	EntityStock      EntityType = "stock_items"
)

// Target describes the entity an action is aimed at. For creates, Role,
// SubLevel, Region, Facility, FacilityType and ParentDistrict carry the
// requested attributes of the child entity; for update/delete they carry the
// stored attributes of the existing one.
type Target struct {
	Type           EntityType
	ID             string
	Role           models.Role
	SubLevel       models.SubLevel
	Region         string
	Facility       string
	FacilityType   models.FacilityType
	ParentDistrict string
}

// Decision is the outcome of an authorization check. It is a plain value:
// denials are expected outcomes, not errors.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns a permitting decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a refusing decision with a human-readable reason.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Denial reasons, grouped by failure class so callers can distinguish wrong
// role, missing organizational context, type-constraint violations,
// uniqueness conflicts and dangling references.
const (
	ReasonInsufficientRole = "insufficient permissions"
	ReasonMissingRegion    = "actor has no region context"
	ReasonMissingFacility  = "actor has no facility context"

	ReasonWrongChildRole      = "requested role is not delegable from this rank"
	ReasonDistrictOfDistrict  = "district cannot create a district"
	ReasonForcedRegion        = "region is derived from the actor and must not be supplied"
	ReasonForcedParent        = "parent district is derived from the actor and must not be supplied"
	ReasonDistrictHasParent   = "a district facility cannot have a parent district"
	ReasonOutsideRegion       = "target is outside the actor's region"
	ReasonOutsideDistrict     = "target is outside the actor's district"
	ReasonOutsideFacility     = "target is outside the actor's facility"
	ReasonTargetNotAgent      = "only agent accounts may be modified"

	ReasonFacilityNotInRegion = "facility not in actor's region"
	ReasonRegionNotFound      = "region does not exist"
	ReasonParentNotFound      = "parent district does not exist"
	ReasonParentNotDistrict   = "parent facility is not a district"

	ReasonRegionalExists      = "a regional administrator already exists for this region"
	ReasonFacilityAdminExists = "a facility administrator already exists for this facility"
	ReasonDistrictActorExists = "a district account already exists for this facility"
	ReasonFacilityNameTaken   = "a facility with this name already exists in the region"
)

// Authorize is the pure decision function of the rule set. Every role has a
// stated policy for every action; anything not explicitly allowed is denied.
// Checks that require collaborator lookups (region existence, uniqueness)
// live in the creation delegation resolver, not here.
func Authorize(actor Actor, action Action, target Target) Decision {
	// Self-service: any actor may update its own user record.
	if action == ActionUpdate && target.Type == EntityUsers && target.ID != "" && target.ID == actor.ID {
		return Allow()
	}

	rank, ranked := actor.Rank()
	if !ranked {
		return Deny(ReasonInsufficientRole)
	}

	switch target.Type {
	case EntityUsers:
		return authorizeUsers(actor, rank, action, target)
	case EntityFacilities:
		return authorizeFacilities(actor, rank, action, target)
	case EntityRegions:
		return authorizeRegions(rank, action)
	case EntityChildren, EntityVaccines:
		return authorizeFacilityRecords(actor, rank, action, target)
	case EntityStock:
		return authorizeStock(actor, rank, action, target)
	}
	return Deny(ReasonInsufficientRole)
}

func authorizeUsers(actor Actor, rank Rank, action Action, target Target) Decision {
	switch action {
	case ActionRead:
		// Every management rank may list users; the scope resolver bounds
		// what the listing returns (down to self-only for plain agents).
		return Allow()

	case ActionCreate:
		return authorizeUserCreate(actor, rank, target)

	case ActionUpdate, ActionDelete:
		// Exhaustive per-rank policy. The historical code fell through to
		// allow for unmatched ranks; here every rank is stated and the
		// default is deny.
		switch rank {
		case RankNational:
			return Allow()
		case RankRegional:
			if target.Role != models.RoleAgent {
				return Deny(ReasonTargetNotAgent)
			}
			if target.Region != actor.Region {
				return Deny(ReasonOutsideRegion)
			}
			return Allow()
		case RankDistrict, RankFacilityAdmin, RankFacilityStaff:
			return Deny(ReasonInsufficientRole)
		}
		return Deny(ReasonInsufficientRole)
	}
	return Deny(ReasonInsufficientRole)
}

// authorizeUserCreate enforces strict one-level-down delegation: each rank
// may create exactly the rank below it, with the required organizational
// context present on the actor.
func authorizeUserCreate(actor Actor, rank Rank, target Target) Decision {
	switch rank {
	case RankNational:
		if target.Role != models.RoleRegional {
			return Deny(ReasonWrongChildRole)
		}
		return Allow()

	case RankRegional:
		if target.Role != models.RoleDistrict {
			return Deny(ReasonWrongChildRole)
		}
		if actor.Region == "" {
			return Deny(ReasonMissingRegion)
		}
		return Allow()

	case RankDistrict:
		if target.Role != models.RoleAgent || (target.SubLevel != models.SubLevelFacilityAdmin && target.SubLevel != models.SubLevelNone) {
			return Deny(ReasonWrongChildRole)
		}
		if actor.Region == "" {
			return Deny(ReasonMissingRegion)
		}
		if actor.Facility == "" {
			return Deny(ReasonMissingFacility)
		}
		return Allow()

	case RankFacilityAdmin:
		if target.Role != models.RoleAgent || target.SubLevel != models.SubLevelFacilityStaff {
			return Deny(ReasonWrongChildRole)
		}
		if actor.Region == "" {
			return Deny(ReasonMissingRegion)
		}
		if actor.Facility == "" {
			return Deny(ReasonMissingFacility)
		}
		return Allow()
	}
	return Deny(ReasonInsufficientRole)
}

func authorizeFacilities(actor Actor, rank Rank, action Action, target Target) Decision {
	switch action {
	case ActionRead:
		return Allow()

	case ActionCreate:
		// Only district-level agents create facilities: an agent with an
		// explicit non-district sub-level is refused outright. An empty
		// sub-level is tolerated as district semantics, matching the
		// pre-migration data this rule grew up with.
		if actor.Role == models.RoleAgent &&
			actor.SubLevel != models.SubLevelNone && actor.SubLevel != models.SubLevelDistrict {
			return Deny(ReasonInsufficientRole)
		}
		// A legacy agent with an empty or district sub-level acts with
		// district semantics here, whatever its default rank elsewhere.
		if actor.Role == models.RoleAgent {
			rank = RankDistrict
		}

		switch rank {
		case RankNational:
			if target.Region == "" {
				return Deny(ReasonMissingRegion)
			}
		case RankRegional:
			if actor.Region == "" {
				return Deny(ReasonMissingRegion)
			}
			if target.Region != "" && target.Region != actor.Region {
				return Deny(ReasonOutsideRegion)
			}
		case RankDistrict:
			if actor.Region == "" {
				return Deny(ReasonMissingRegion)
			}
			if actor.Facility == "" {
				return Deny(ReasonMissingFacility)
			}
			if target.FacilityType == models.FacilityTypeDistrict {
				return Deny(ReasonDistrictOfDistrict)
			}
			if target.Region != "" && target.Region != actor.Region {
				return Deny(ReasonForcedRegion)
			}
			if target.ParentDistrict != "" && target.ParentDistrict != actor.Facility {
				return Deny(ReasonForcedParent)
			}
		default:
			return Deny(ReasonInsufficientRole)
		}

		// Districts are not nested, whoever creates them.
		if target.FacilityType == models.FacilityTypeDistrict && target.ParentDistrict != "" {
			return Deny(ReasonDistrictHasParent)
		}
		return Allow()

	case ActionUpdate, ActionDelete:
		switch rank {
		case RankNational:
			return Allow()
		case RankRegional:
			if target.Region != actor.Region {
				return Deny(ReasonOutsideRegion)
			}
			return Allow()
		case RankDistrict:
			if target.ParentDistrict != actor.Facility && target.Name() != actor.Facility {
				return Deny(ReasonOutsideDistrict)
			}
			return Allow()
		case RankFacilityAdmin, RankFacilityStaff:
			return Deny(ReasonInsufficientRole)
		}
		return Deny(ReasonInsufficientRole)
	}
	return Deny(ReasonInsufficientRole)
}

// Name returns the facility name a facility-typed target refers to, carried
// in the Facility field.
func (t Target) Name() string { return t.Facility }

func authorizeRegions(rank Rank, action Action) Decision {
	switch action {
	case ActionRead:
		return Allow()
	case ActionCreate, ActionUpdate, ActionDelete:
		if rank == RankNational {
			return Allow()
		}
		return Deny(ReasonInsufficientRole)
	}
	return Deny(ReasonInsufficientRole)
}

// authorizeFacilityRecords covers children and vaccination records: data
// entered at facilities, supervised upward through the hierarchy.
func authorizeFacilityRecords(actor Actor, rank Rank, action Action, target Target) Decision {
	switch action {
	case ActionRead:
		return Allow()
	case ActionCreate, ActionUpdate:
		switch rank {
		case RankNational:
			return Allow()
		case RankRegional, RankDistrict:
			if target.Region != "" && target.Region != actor.Region {
				return Deny(ReasonOutsideRegion)
			}
			return Allow()
		case RankFacilityAdmin, RankFacilityStaff:
			if target.Facility != actor.Facility {
				return Deny(ReasonOutsideFacility)
			}
			return Allow()
		}
		return Deny(ReasonInsufficientRole)
	case ActionDelete:
		switch rank {
		case RankNational:
			return Allow()
		case RankRegional:
			if target.Region != actor.Region {
				return Deny(ReasonOutsideRegion)
			}
			return Allow()
		case RankDistrict, RankFacilityAdmin, RankFacilityStaff:
			return Deny(ReasonInsufficientRole)
		}
		return Deny(ReasonInsufficientRole)
	}
	return Deny(ReasonInsufficientRole)
}

func authorizeStock(actor Actor, rank Rank, action Action, target Target) Decision {
	switch action {
	case ActionRead:
		return Allow()
	case ActionCreate, ActionUpdate:
		switch rank {
		case RankNational:
			return Allow()
		case RankRegional, RankDistrict:
			if target.Region != "" && target.Region != actor.Region {
				return Deny(ReasonOutsideRegion)
			}
			return Allow()
		case RankFacilityAdmin:
			if target.Facility != actor.Facility {
				return Deny(ReasonOutsideFacility)
			}
			return Allow()
		case RankFacilityStaff:
			return Deny(ReasonInsufficientRole)
		}
		return Deny(ReasonInsufficientRole)
	case ActionDelete:
		switch rank {
		case RankNational:
			return Allow()
		case RankRegional:
			if target.Region != actor.Region {
				return Deny(ReasonOutsideRegion)
			}
			return Allow()
		}
		return Deny(ReasonInsufficientRole)
	}
	return Deny(ReasonInsufficientRole)
}
