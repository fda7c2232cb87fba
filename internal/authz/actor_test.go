package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

func facilityLookup(facilities map[string]*models.HealthFacility, err error) FacilityLookup {
	return func(ctx context.Context, name string) (*models.HealthFacility, error) {
		if err != nil {
			return nil, err
		}
		return facilities[name], nil
	}
}

func TestResolveActorUpgradesDistrictAgent(t *testing.T) {
	lookup := facilityLookup(map[string]*models.HealthFacility{
		"District A": {Name: "District A", Region: "Dakar", Type: models.FacilityTypeDistrict},
	}, nil)
	record := &models.User{ID: "u1", Role: models.RoleAgent, Region: "Dakar", Facility: "District A"}

	actor, patch := ResolveActor(context.Background(), record, lookup)

	assert.Equal(t, models.RoleDistrict, actor.Role)
	assert.Equal(t, models.SubLevelNone, actor.SubLevel)
	require.NotNil(t, patch)
	assert.Equal(t, "u1", patch.UserID)
	assert.Equal(t, models.RoleDistrict, patch.Role)
	assert.Equal(t, models.SubLevelNone, patch.SubLevel)
}

func TestResolveActorIdempotent(t *testing.T) {
	lookup := facilityLookup(map[string]*models.HealthFacility{
		"District A": {Name: "District A", Region: "Dakar", Type: models.FacilityTypeDistrict},
	}, nil)
	record := &models.User{ID: "u1", Role: models.RoleAgent, Region: "Dakar", Facility: "District A"}

	first, patch := ResolveActor(context.Background(), record, lookup)
	require.NotNil(t, patch)

	// Apply the patch the way the caller would, then resolve again.
	record.Role = patch.Role
	record.SubLevel = patch.SubLevel

	second, patch := ResolveActor(context.Background(), record, lookup)
	assert.Nil(t, patch, "second resolution performs no write")
	assert.Equal(t, first, second)
}

func TestResolveActorDefaultsEmptySubLevel(t *testing.T) {
	lookup := facilityLookup(map[string]*models.HealthFacility{
		"Clinic X": {Name: "Clinic X", Region: "Dakar", Type: models.FacilityTypeClinic},
	}, nil)
	record := &models.User{ID: "u2", Role: models.RoleAgent, Region: "Dakar", Facility: "Clinic X"}

	actor, patch := ResolveActor(context.Background(), record, lookup)

	assert.Equal(t, models.RoleAgent, actor.Role)
	assert.Equal(t, models.SubLevelFacilityAdmin, actor.SubLevel)
	require.NotNil(t, patch)
	assert.Equal(t, models.RoleAgent, patch.Role)
	assert.Equal(t, models.SubLevelFacilityAdmin, patch.SubLevel)
}

func TestResolveActorKeepsExplicitSubLevel(t *testing.T) {
	lookup := facilityLookup(map[string]*models.HealthFacility{
		"Clinic X": {Name: "Clinic X", Region: "Dakar", Type: models.FacilityTypeClinic},
	}, nil)
	record := &models.User{ID: "u3", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff, Region: "Dakar", Facility: "Clinic X"}

	actor, patch := ResolveActor(context.Background(), record, lookup)

	assert.Nil(t, patch)
	assert.Equal(t, models.SubLevelFacilityStaff, actor.SubLevel)
}

func TestResolveActorDegradedOnLookupFailure(t *testing.T) {
	lookup := facilityLookup(nil, errors.New("connection refused"))
	record := &models.User{ID: "u4", Role: models.RoleAgent, Region: "Dakar", Facility: "Clinic X"}

	actor, patch := ResolveActor(context.Background(), record, lookup)

	assert.Nil(t, patch, "a failed lookup must not persist anything")
	assert.Equal(t, models.RoleAgent, actor.Role)
	assert.Equal(t, models.SubLevelNone, actor.SubLevel)

	// Degraded agents still behave as facility administrators.
	rank, ok := actor.Rank()
	require.True(t, ok)
	assert.Equal(t, RankFacilityAdmin, rank)
}

func TestResolveActorUnknownFacility(t *testing.T) {
	lookup := facilityLookup(map[string]*models.HealthFacility{}, nil)
	record := &models.User{ID: "u5", Role: models.RoleAgent, Region: "Dakar", Facility: "Ghost"}

	actor, patch := ResolveActor(context.Background(), record, lookup)
	assert.Nil(t, patch)
	assert.Equal(t, models.RoleAgent, actor.Role)
}

func TestResolveActorCanonicalRolesUntouched(t *testing.T) {
	lookup := facilityLookup(map[string]*models.HealthFacility{
		"District A": {Name: "District A", Type: models.FacilityTypeDistrict},
	}, nil)

	for _, role := range []models.Role{models.RoleNational, models.RoleRegional, models.RoleDistrict, models.RoleUser} {
		record := &models.User{ID: "u6", Role: role, Facility: "District A"}
		actor, patch := ResolveActor(context.Background(), record, lookup)
		assert.Nil(t, patch, "role %s is already canonical", role)
		assert.Equal(t, role, actor.Role)
	}
}

func TestActorFromClaims(t *testing.T) {
	claims := &models.JWTClaims{
		UserID:   "u7",
		Role:     models.RoleAgent,
		SubLevel: models.SubLevelFacilityStaff,
		Region:   "Thiès",
		Facility: "Clinic X",
	}
	actor := ActorFromClaims(claims)
	assert.Equal(t, "u7", actor.ID)
	assert.Equal(t, models.RoleAgent, actor.Role)
	assert.Equal(t, models.SubLevelFacilityStaff, actor.SubLevel)
	assert.Equal(t, "Thiès", actor.Region)
	assert.Equal(t, "Clinic X", actor.Facility)
}
