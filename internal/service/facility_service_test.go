package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
)

type mockFacilityRepo struct {
	facilities map[string]*models.HealthFacility
	updated    []string
}

func newMockFacilityRepo(seed ...*models.HealthFacility) *mockFacilityRepo {
	repo := &mockFacilityRepo{facilities: make(map[string]*models.HealthFacility)}
	for _, f := range seed {
		clone := *f
		repo.facilities[f.ID] = &clone
	}
	return repo
}

func (m *mockFacilityRepo) FindByID(ctx context.Context, id string) (*models.HealthFacility, error) {
	if f, ok := m.facilities[id]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFacilityRepo) FindByName(ctx context.Context, name string) (*models.HealthFacility, error) {
	for _, f := range m.facilities {
		if f.Name == name {
			clone := *f
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *mockFacilityRepo) List(ctx context.Context, filter models.FacilityFilter) ([]models.HealthFacility, int, error) {
	var out []models.HealthFacility
	for _, f := range m.facilities {
		out = append(out, *f)
	}
	return out, len(out), nil
}

func (m *mockFacilityRepo) NameTaken(ctx context.Context, region, name string) (bool, error) {
	for _, f := range m.facilities {
		if f.Region == region && f.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFacilityRepo) Create(ctx context.Context, facility *models.HealthFacility) error {
	if facility.ID == "" {
		facility.ID = "generated-" + facility.Name
	}
	clone := *facility
	m.facilities[facility.ID] = &clone
	return nil
}

func (m *mockFacilityRepo) Update(ctx context.Context, facility *models.HealthFacility) error {
	clone := *facility
	m.facilities[facility.ID] = &clone
	m.updated = append(m.updated, facility.ID)
	return nil
}

func (m *mockFacilityRepo) Delete(ctx context.Context, id string) error {
	if f, ok := m.facilities[id]; ok {
		f.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockFacilityRepo) NamesUnderDistrict(ctx context.Context, district string) ([]string, error) {
	var names []string
	for _, f := range m.facilities {
		if f.Name == district || f.ParentDistrict == district {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

type mockAuditSink struct {
	logs []*models.AuditLog
}

func (m *mockAuditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newFacilityServiceFixture() (*FacilityService, *mockFacilityRepo) {
	repo := newMockFacilityRepo(
		&models.HealthFacility{ID: "fac-a", Name: "District A", Region: "Dakar", Type: models.FacilityTypeDistrict, Active: true},
		&models.HealthFacility{ID: "fac-b", Name: "District B", Region: "Dakar", Type: models.FacilityTypeDistrict, Active: true},
		&models.HealthFacility{ID: "fac-t", Name: "District T", Region: "Thiès", Type: models.FacilityTypeDistrict, Active: true},
		&models.HealthFacility{ID: "fac-x", Name: "Clinic X", Region: "Dakar", Type: models.FacilityTypeClinic, ParentDistrict: "District A", Active: true},
		&models.HealthFacility{ID: "fac-y", Name: "Clinic Y", Region: "Dakar", Type: models.FacilityTypeClinic, ParentDistrict: "District B", Active: true},
	)
	regions := &mockRegionExists{regions: map[string]bool{"Dakar": true, "Thiès": true}}
	scope := NewScopeResolver(repo, nil, 0, zap.NewNop())
	svc := NewFacilityService(repo, regions, &mockAuditSink{}, scope, validator.New(), zap.NewNop(), nil)
	return svc, repo
}

func strPtr(s string) *string { return &s }

func TestUpdateCannotNestDistricts(t *testing.T) {
	svc, repo := newFacilityServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	_, err := svc.Update(context.Background(), national, "fac-a", models.UpdateFacilityRequest{
		ParentDistrict: strPtr("District B"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.updated)
	assert.Empty(t, repo.facilities["fac-a"].ParentDistrict)
}

func TestUpdatePromotingParentedClinicRejected(t *testing.T) {
	svc, repo := newFacilityServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	districtType := models.FacilityTypeDistrict
	_, err := svc.Update(context.Background(), national, "fac-x", models.UpdateFacilityRequest{
		Type: &districtType,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, models.FacilityTypeClinic, repo.facilities["fac-x"].Type)
}

func TestUpdateDistrictActorCannotReparentElsewhere(t *testing.T) {
	svc, repo := newFacilityServiceFixture()
	district := authz.Actor{ID: "dis-1", Role: models.RoleDistrict, Region: "Dakar", Facility: "District A"}

	_, err := svc.Update(context.Background(), district, "fac-x", models.UpdateFacilityRequest{
		ParentDistrict: strPtr("District Elsewhere"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, "District A", repo.facilities["fac-x"].ParentDistrict)
}

func TestUpdateRejectsMissingParent(t *testing.T) {
	svc, repo := newFacilityServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	_, err := svc.Update(context.Background(), national, "fac-x", models.UpdateFacilityRequest{
		ParentDistrict: strPtr("District Ghost"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "District A", repo.facilities["fac-x"].ParentDistrict)
}

func TestUpdateRejectsNonDistrictParent(t *testing.T) {
	svc, _ := newFacilityServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	_, err := svc.Update(context.Background(), national, "fac-x", models.UpdateFacilityRequest{
		ParentDistrict: strPtr("Clinic Y"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestUpdateParentMustShareRegion(t *testing.T) {
	svc, _ := newFacilityServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	_, err := svc.Update(context.Background(), national, "fac-x", models.UpdateFacilityRequest{
		ParentDistrict: strPtr("District T"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestUpdateReparentsToValidDistrict(t *testing.T) {
	svc, repo := newFacilityServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	facility, err := svc.Update(context.Background(), national, "fac-x", models.UpdateFacilityRequest{
		ParentDistrict: strPtr("District B"),
	})
	require.NoError(t, err)
	assert.Equal(t, "District B", facility.ParentDistrict)
	assert.Equal(t, "District B", repo.facilities["fac-x"].ParentDistrict)
}
