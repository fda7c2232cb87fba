package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

func staticFacilitySet(sets map[string][]string, err error) FacilitySetLookup {
	return func(ctx context.Context, district string) ([]string, error) {
		if err != nil {
			return nil, err
		}
		return sets[district], nil
	}
}

func TestScopeForUsersNational(t *testing.T) {
	filter, err := ScopeFor(context.Background(), national, EntityUsers, ScopeHintNone, nil)
	require.NoError(t, err)
	assert.True(t, filter.Unrestricted())
}

func TestScopeForUsersRegional(t *testing.T) {
	filter, err := ScopeFor(context.Background(), regionalDakar, EntityUsers, ScopeHintNone, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDistrict, filter.Role)
	assert.Equal(t, "Dakar", filter.Region)
	assert.Empty(t, filter.Facilities)
}

func TestScopeForUsersDistrict(t *testing.T) {
	under := staticFacilitySet(map[string][]string{
		"District A": {"Clinic X", "Health Post Y"},
	}, nil)

	filter, err := ScopeFor(context.Background(), districtA, EntityUsers, ScopeHintNone, under)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgent, filter.Role)
	assert.Equal(t, "Dakar", filter.Region)
	assert.ElementsMatch(t, []string{"Clinic X", "Health Post Y"}, filter.Facilities)
	assert.False(t, filter.MatchNone)
}

func TestScopeForUsersDistrictEmptySet(t *testing.T) {
	under := staticFacilitySet(map[string][]string{}, nil)

	filter, err := ScopeFor(context.Background(), districtA, EntityUsers, ScopeHintNone, under)
	require.NoError(t, err)
	assert.True(t, filter.MatchNone, "an empty facility set must match nothing, not everything")
}

func TestScopeForUsersDistrictLookupFailure(t *testing.T) {
	under := staticFacilitySet(nil, errors.New("connection refused"))

	_, err := ScopeFor(context.Background(), districtA, EntityUsers, ScopeHintNone, under)
	assert.Error(t, err)
}

func TestScopeForUsersFacilityAdminStaffHint(t *testing.T) {
	filter, err := ScopeFor(context.Background(), adminClinicX, EntityUsers, ScopeHintStaff, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgent, filter.Role)
	assert.Equal(t, "Dakar", filter.Region)
	assert.Equal(t, "Clinic X", filter.Facility)
	assert.Equal(t, models.SubLevelFacilityStaff, filter.SubLevel)
}

func TestScopeForUsersFacilityAdminAdminsHint(t *testing.T) {
	under := staticFacilitySet(map[string][]string{
		"Clinic X": {"Clinic X"},
	}, nil)

	filter, err := ScopeFor(context.Background(), adminClinicX, EntityUsers, ScopeHintAdmins, under)
	require.NoError(t, err)
	assert.Equal(t, models.SubLevelFacilityAdmin, filter.SubLevel)
	assert.Equal(t, models.RoleAgent, filter.Role)
	assert.ElementsMatch(t, []string{"Clinic X"}, filter.Facilities)
}

func TestScopeForUsersDefaultsToSelf(t *testing.T) {
	for _, actor := range []Actor{adminClinicX, staffClinicX, endConsumer} {
		filter, err := ScopeFor(context.Background(), actor, EntityUsers, ScopeHintNone, nil)
		require.NoError(t, err)
		assert.Equal(t, actor.ID, filter.ID, "actor %s sees only self", actor.ID)
	}
}

func TestScopeForFacilities(t *testing.T) {
	filter, err := ScopeFor(context.Background(), regionalDakar, EntityFacilities, ScopeHintNone, nil)
	require.NoError(t, err)
	assert.Equal(t, "Dakar", filter.Region)

	filter, err = ScopeFor(context.Background(), districtA, EntityFacilities, ScopeHintNone, nil)
	require.NoError(t, err)
	assert.Equal(t, "District A", filter.ParentDistrict)

	filter, err = ScopeFor(context.Background(), national, EntityFacilities, ScopeHintNone, nil)
	require.NoError(t, err)
	assert.True(t, filter.Unrestricted())
}

func TestScopeForChildrenAndStock(t *testing.T) {
	under := staticFacilitySet(map[string][]string{
		"District A": {"Clinic X"},
	}, nil)

	for _, entity := range []EntityType{EntityChildren, EntityStock, EntityVaccines} {
		filter, err := ScopeFor(context.Background(), staffClinicX, entity, ScopeHintNone, nil)
		require.NoError(t, err)
		assert.Equal(t, "Clinic X", filter.Facility)

		filter, err = ScopeFor(context.Background(), districtA, entity, ScopeHintNone, under)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Clinic X"}, filter.Facilities)

		filter, err = ScopeFor(context.Background(), regionalDakar, entity, ScopeHintNone, nil)
		require.NoError(t, err)
		assert.Equal(t, "Dakar", filter.Region)
		assert.Empty(t, filter.Facility)
	}
}

// Scope containment: every user a scope filter admits is individually
// readable by the actor that produced the filter.
func TestScopeContainment(t *testing.T) {
	under := staticFacilitySet(map[string][]string{
		"District A": {"Clinic X", "Health Post Y"},
	}, nil)

	population := []models.User{
		{ID: "n1", Role: models.RoleNational},
		{ID: "r1", Role: models.RoleRegional, Region: "Dakar"},
		{ID: "d1", Role: models.RoleDistrict, Region: "Dakar", Facility: "District A"},
		{ID: "a1", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin, Region: "Dakar", Facility: "Clinic X"},
		{ID: "s1", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff, Region: "Dakar", Facility: "Clinic X"},
		{ID: "a2", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityAdmin, Region: "Thiès", Facility: "Clinic Z"},
	}

	for _, actor := range []Actor{national, regionalDakar, districtA, adminClinicX, staffClinicX} {
		for _, hint := range []ScopeHint{ScopeHintNone, ScopeHintAdmins, ScopeHintStaff} {
			filter, err := ScopeFor(context.Background(), actor, EntityUsers, hint, under)
			require.NoError(t, err)

			for _, u := range population {
				if !matchesUserFilter(filter, u) {
					continue
				}
				decision := Authorize(actor, ActionRead, Target{
					Type: EntityUsers, ID: u.ID, Role: u.Role, SubLevel: u.SubLevel,
					Region: u.Region, Facility: u.Facility,
				})
				assert.True(t, decision.Allowed,
					"scope for %s (hint %q) admits %s but read is denied", actor.ID, hint, u.ID)
			}
		}
	}
}

func matchesUserFilter(f ScopeFilter, u models.User) bool {
	if f.MatchNone {
		return false
	}
	if f.ID != "" && u.ID != f.ID {
		return false
	}
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.SubLevel != "" && u.SubLevel != f.SubLevel {
		return false
	}
	if f.Region != "" && u.Region != f.Region {
		return false
	}
	if f.Facility != "" && u.Facility != f.Facility {
		return false
	}
	if len(f.Facilities) > 0 {
		found := false
		for _, name := range f.Facilities {
			if u.Facility == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
