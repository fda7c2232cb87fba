package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

var (
	national      = Actor{ID: "n1", Role: models.RoleNational}
	regionalDakar = Actor{ID: "r1", Role: models.RoleRegional, Region: "Dakar"}
	districtA     = Actor{ID: "d1", Role: models.RoleDistrict, Region: "Dakar", Facility: "District A"}
	adminClinicX  = Actor{ID: "a1", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin, Region: "Dakar", Facility: "Clinic X"}
	staffClinicX  = Actor{ID: "s1", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff, Region: "Dakar", Facility: "Clinic X"}
	endConsumer   = Actor{ID: "c1", Role: models.RoleUser}
)

func TestAuthorizeSelfUpdateAlwaysAllowed(t *testing.T) {
	for _, actor := range []Actor{national, regionalDakar, districtA, adminClinicX, staffClinicX, endConsumer} {
		decision := Authorize(actor, ActionUpdate, Target{Type: EntityUsers, ID: actor.ID})
		assert.True(t, decision.Allowed, "actor %s updates own record", actor.ID)
	}
}

func TestAuthorizeUserCreateDelegation(t *testing.T) {
	cases := []struct {
		name    string
		actor   Actor
		target  Target
		allowed bool
		reason  string
	}{
		{"national creates regional", national, Target{Type: EntityUsers, Role: models.RoleRegional}, true, ""},
		{"national skips a rank", national, Target{Type: EntityUsers, Role: models.RoleDistrict}, false, ReasonWrongChildRole},
		{"regional creates district", regionalDakar, Target{Type: EntityUsers, Role: models.RoleDistrict, Facility: "District A"}, true, ""},
		{"regional skips a rank", regionalDakar, Target{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin}, false, ReasonWrongChildRole},
		{"district creates facility admin", districtA, Target{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin}, true, ""},
		{"district cannot create staff directly", districtA, Target{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff}, false, ReasonWrongChildRole},
		{"admin creates staff", adminClinicX, Target{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff}, true, ""},
		{"admin cannot create admin", adminClinicX, Target{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin}, false, ReasonWrongChildRole},
		{"staff creates nobody", staffClinicX, Target{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff}, false, ReasonInsufficientRole},
		{"end consumer creates nobody", endConsumer, Target{Type: EntityUsers, Role: models.RoleUser}, false, ReasonInsufficientRole},
		{"regional without region context", Actor{ID: "r2", Role: models.RoleRegional}, Target{Type: EntityUsers, Role: models.RoleDistrict}, false, ReasonMissingRegion},
		{"district without facility context", Actor{ID: "d2", Role: models.RoleDistrict, Region: "Dakar"}, Target{Type: EntityUsers, Role: models.RoleAgent}, false, ReasonMissingFacility},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Authorize(tc.actor, ActionCreate, tc.target)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, decision.Reason)
			}
		})
	}
}

// Delegation is exactly one rank down: whenever a create is allowed, the
// created role's rank is the actor's rank plus one.
func TestDelegationIsOneRankDown(t *testing.T) {
	actors := []Actor{national, regionalDakar, districtA, adminClinicX, staffClinicX}
	children := []Target{
		{Type: EntityUsers, Role: models.RoleNational},
		{Type: EntityUsers, Role: models.RoleRegional},
		{Type: EntityUsers, Role: models.RoleDistrict, Facility: "District A"},
		{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin},
		{Type: EntityUsers, Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff},
	}

	for _, actor := range actors {
		actorRank, _ := actor.Rank()
		for _, child := range children {
			decision := Authorize(actor, ActionCreate, child)
			if !decision.Allowed {
				continue
			}
			childRank, ok := RankOf(child.Role, child.SubLevel)
			assert.True(t, ok)
			assert.Equal(t, actorRank+1, childRank,
				"rank %v may only create rank %v", actorRank, actorRank+1)
		}
	}
}

func TestAuthorizeUserUpdateDelete(t *testing.T) {
	agentInDakar := Target{Type: EntityUsers, ID: "other", Role: models.RoleAgent, Region: "Dakar"}
	agentInThies := Target{Type: EntityUsers, ID: "other", Role: models.RoleAgent, Region: "Thiès"}
	districtUser := Target{Type: EntityUsers, ID: "other", Role: models.RoleDistrict, Region: "Dakar"}

	for _, action := range []Action{ActionUpdate, ActionDelete} {
		assert.True(t, Authorize(national, action, agentInDakar).Allowed)
		assert.True(t, Authorize(regionalDakar, action, agentInDakar).Allowed)

		decision := Authorize(regionalDakar, action, agentInThies)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonOutsideRegion, decision.Reason)

		decision = Authorize(regionalDakar, action, districtUser)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonTargetNotAgent, decision.Reason)

		// Agent-rank actors never touch other users.
		for _, actor := range []Actor{districtA, adminClinicX, staffClinicX} {
			assert.False(t, Authorize(actor, action, agentInDakar).Allowed)
		}
		assert.False(t, Authorize(endConsumer, action, agentInDakar).Allowed)
	}
}

func TestAuthorizeFacilityCreate(t *testing.T) {
	cases := []struct {
		name    string
		actor   Actor
		target  Target
		allowed bool
		reason  string
	}{
		{"national with explicit region", national, Target{Type: EntityFacilities, Region: "Dakar", FacilityType: models.FacilityTypeHealthCenter}, true, ""},
		{"national without region", national, Target{Type: EntityFacilities, FacilityType: models.FacilityTypeHealthCenter}, false, ReasonMissingRegion},
		{"regional in own region", regionalDakar, Target{Type: EntityFacilities, Region: "Dakar", FacilityType: models.FacilityTypeDistrict}, true, ""},
		{"regional outside own region", regionalDakar, Target{Type: EntityFacilities, Region: "Thiès", FacilityType: models.FacilityTypeClinic}, false, ReasonOutsideRegion},
		{"district creates health post", districtA, Target{Type: EntityFacilities, FacilityType: models.FacilityTypeHealthPost}, true, ""},
		{"district cannot create a district", districtA, Target{Type: EntityFacilities, FacilityType: models.FacilityTypeDistrict}, false, ReasonDistrictOfDistrict},
		{"district must not supply region", districtA, Target{Type: EntityFacilities, Region: "Thiès", FacilityType: models.FacilityTypeClinic}, false, ReasonForcedRegion},
		{"district must not supply parent", districtA, Target{Type: EntityFacilities, ParentDistrict: "District B", FacilityType: models.FacilityTypeClinic}, false, ReasonForcedParent},
		{"legacy agent without sublevel creates as district", Actor{ID: "d3", Role: models.RoleAgent, Region: "Dakar", Facility: "District A"}, Target{Type: EntityFacilities, FacilityType: models.FacilityTypeClinic}, true, ""},
		{"legacy agent without sublevel still no district", Actor{ID: "d3", Role: models.RoleAgent, Region: "Dakar", Facility: "District A"}, Target{Type: EntityFacilities, FacilityType: models.FacilityTypeDistrict}, false, ReasonDistrictOfDistrict},
		{"facility admin denied", adminClinicX, Target{Type: EntityFacilities, FacilityType: models.FacilityTypeClinic}, false, ReasonInsufficientRole},
		{"facility staff denied", staffClinicX, Target{Type: EntityFacilities, FacilityType: models.FacilityTypeClinic}, false, ReasonInsufficientRole},
		{"district facility cannot have a parent", national, Target{Type: EntityFacilities, Region: "Dakar", FacilityType: models.FacilityTypeDistrict, ParentDistrict: "District A"}, false, ReasonDistrictHasParent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Authorize(tc.actor, ActionCreate, tc.target)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, decision.Reason)
			}
		})
	}
}

func TestAuthorizeFacilityUpdateDelete(t *testing.T) {
	ownRegion := Target{Type: EntityFacilities, Facility: "Clinic X", Region: "Dakar", ParentDistrict: "District A"}
	otherRegion := Target{Type: EntityFacilities, Facility: "Clinic Y", Region: "Thiès", ParentDistrict: "District T"}

	for _, action := range []Action{ActionUpdate, ActionDelete} {
		assert.True(t, Authorize(national, action, ownRegion).Allowed)
		assert.True(t, Authorize(regionalDakar, action, ownRegion).Allowed)
		assert.False(t, Authorize(regionalDakar, action, otherRegion).Allowed)
		assert.True(t, Authorize(districtA, action, ownRegion).Allowed)
		assert.False(t, Authorize(districtA, action, otherRegion).Allowed)
		assert.False(t, Authorize(adminClinicX, action, ownRegion).Allowed)
		assert.False(t, Authorize(staffClinicX, action, ownRegion).Allowed)
	}
}

func TestAuthorizeRegions(t *testing.T) {
	target := Target{Type: EntityRegions, Region: "Dakar"}
	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		assert.True(t, Authorize(national, action, target).Allowed)
		for _, actor := range []Actor{regionalDakar, districtA, adminClinicX, staffClinicX, endConsumer} {
			assert.False(t, Authorize(actor, action, target).Allowed)
		}
	}
	assert.True(t, Authorize(regionalDakar, ActionRead, target).Allowed)
}

func TestAuthorizeChildrenAndStock(t *testing.T) {
	childHere := Target{Type: EntityChildren, Region: "Dakar", Facility: "Clinic X"}
	childElsewhere := Target{Type: EntityChildren, Region: "Dakar", Facility: "Clinic Y"}

	assert.True(t, Authorize(staffClinicX, ActionCreate, childHere).Allowed)
	assert.False(t, Authorize(staffClinicX, ActionCreate, childElsewhere).Allowed)
	assert.True(t, Authorize(regionalDakar, ActionCreate, childHere).Allowed)
	assert.False(t, Authorize(staffClinicX, ActionDelete, childHere).Allowed)
	assert.True(t, Authorize(regionalDakar, ActionDelete, childHere).Allowed)

	stockHere := Target{Type: EntityStock, Region: "Dakar", Facility: "Clinic X"}
	assert.True(t, Authorize(adminClinicX, ActionUpdate, stockHere).Allowed)
	assert.False(t, Authorize(staffClinicX, ActionUpdate, stockHere).Allowed, "staff reads stock but does not adjust it")
	assert.True(t, Authorize(staffClinicX, ActionRead, stockHere).Allowed)
}

func TestAuthorizeDefaultDenyForUnknownRole(t *testing.T) {
	ghost := Actor{ID: "g1", Role: models.Role("auditor")}
	for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
		decision := Authorize(ghost, action, Target{Type: EntityUsers, ID: "other"})
		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonInsufficientRole, decision.Reason)
	}
}
