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
	"github.com/modoudou1/vaxcare-api/internal/repository"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	auditLogs  []*models.AuditLog

	regionalTaken map[string]bool
	adminTaken    map[string]bool
	districtTaken map[string]bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:         make(map[string]*models.User),
		regionalTaken: make(map[string]bool),
		adminTaken:    make(map[string]bool),
		districtTaken: make(map[string]bool),
	}
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	if filter.MatchNone {
		return []models.User{}, 0, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	return m.store(user)
}

func (m *mockUserRepo) CreateRegional(ctx context.Context, user *models.User) error {
	if m.regionalTaken[user.Region] {
		return repository.ErrUniqueRoleViolation
	}
	m.regionalTaken[user.Region] = true
	return m.store(user)
}

func (m *mockUserRepo) CreateDistrictActor(ctx context.Context, user *models.User) error {
	if m.districtTaken[user.Facility] {
		return repository.ErrUniqueRoleViolation
	}
	m.districtTaken[user.Facility] = true
	return m.store(user)
}

func (m *mockUserRepo) CreateFacilityAdmin(ctx context.Context, user *models.User) error {
	key := user.Region + "/" + user.Facility
	if m.adminTaken[key] {
		return repository.ErrUniqueRoleViolation
	}
	m.adminTaken[key] = true
	return m.store(user)
}

func (m *mockUserRepo) store(user *models.User) error {
	if user.ID == "" {
		user.ID = "generated-" + user.Email
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) HasRegionalAdmin(ctx context.Context, region string) (bool, error) {
	return m.regionalTaken[region], nil
}

func (m *mockUserRepo) HasFacilityAdmin(ctx context.Context, region, facility string) (bool, error) {
	return m.adminTaken[region+"/"+facility], nil
}

func (m *mockUserRepo) HasDistrictActor(ctx context.Context, facility string) (bool, error) {
	return m.districtTaken[facility], nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockFacilityLookup struct {
	facilities map[string]*models.HealthFacility
}

func (m *mockFacilityLookup) FindByName(ctx context.Context, name string) (*models.HealthFacility, error) {
	if f, ok := m.facilities[name]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, nil
}

func (m *mockFacilityLookup) NamesUnderDistrict(ctx context.Context, district string) ([]string, error) {
	var names []string
	for _, f := range m.facilities {
		if f.Name == district || f.ParentDistrict == district {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

type mockRegionExists struct {
	regions map[string]bool
}

func (m *mockRegionExists) Exists(ctx context.Context, name string) (bool, error) {
	return m.regions[name], nil
}

func newUserServiceFixture() (*UserService, *mockUserRepo, *mockFacilityLookup) {
	repo := newMockUserRepo()
	facilities := &mockFacilityLookup{facilities: map[string]*models.HealthFacility{
		"District A": {Name: "District A", Region: "Dakar", Type: models.FacilityTypeDistrict},
		"Clinic X":   {Name: "Clinic X", Region: "Dakar", Type: models.FacilityTypeClinic, ParentDistrict: "District A"},
	}}
	regions := &mockRegionExists{regions: map[string]bool{"Dakar": true, "Thiès": true}}
	scope := NewScopeResolver(facilities, nil, 0, zap.NewNop())
	svc := NewUserService(repo, facilities, regions, scope, validator.New(), zap.NewNop(), nil)
	return svc, repo, facilities
}

func TestCreateRegionalAdministrator(t *testing.T) {
	svc, repo, _ := newUserServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	user, err := svc.Create(context.Background(), national, models.CreateUserRequest{
		Email:    "regional@example.sn",
		Password: "secret1",
		FullName: "Regional Admin",
		Role:     models.RoleRegional,
		Region:   "Dakar",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleRegional, user.Role)
	assert.Equal(t, "Dakar", user.Region)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestCreateSecondRegionalConflicts(t *testing.T) {
	svc, _, _ := newUserServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	_, err := svc.Create(context.Background(), national, models.CreateUserRequest{
		Email:    "first@example.sn",
		Password: "secret1",
		FullName: "First",
		Role:     models.RoleRegional,
		Region:   "Dakar",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), national, models.CreateUserRequest{
		Email:    "second@example.sn",
		Password: "secret1",
		FullName: "Second",
		Role:     models.RoleRegional,
		Region:   "Dakar",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCreateSkippingARankIsForbidden(t *testing.T) {
	svc, _, _ := newUserServiceFixture()
	national := authz.Actor{ID: "nat-1", Role: models.RoleNational}

	_, err := svc.Create(context.Background(), national, models.CreateUserRequest{
		Email:    "staff@example.sn",
		Password: "secret1",
		FullName: "Staff",
		Role:     models.RoleAgent,
		SubLevel: models.SubLevelFacilityStaff,
		Region:   "Dakar",
		Facility: "Clinic X",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDistrictCreateForcesPosition(t *testing.T) {
	svc, _, _ := newUserServiceFixture()
	district := authz.Actor{ID: "dis-1", Role: models.RoleDistrict, Region: "Dakar", Facility: "District A"}

	user, err := svc.Create(context.Background(), district, models.CreateUserRequest{
		Email:    "admin@example.sn",
		Password: "secret1",
		FullName: "Facility Admin",
		Role:     models.RoleAgent,
		SubLevel: models.SubLevelFacilityAdmin,
		Region:   "Thiès",
		Facility: "Somewhere Else",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dakar", user.Region)
	assert.Equal(t, "District A", user.Facility)
}

func TestListRegionalScopesToDistricts(t *testing.T) {
	svc, repo, _ := newUserServiceFixture()
	regional := authz.Actor{ID: "reg-1", Role: models.RoleRegional, Region: "Dakar"}

	_, _, err := svc.List(context.Background(), regional, authz.ScopeHintNone, models.UserFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.Role)
	assert.Equal(t, models.RoleDistrict, *repo.lastFilter.Role)
	assert.Equal(t, "Dakar", repo.lastFilter.Region)
}

func TestListDistrictScopesToFacilitySet(t *testing.T) {
	svc, repo, _ := newUserServiceFixture()
	district := authz.Actor{ID: "dis-1", Role: models.RoleDistrict, Region: "Dakar", Facility: "District A"}

	_, _, err := svc.List(context.Background(), district, authz.ScopeHintNone, models.UserFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"District A", "Clinic X"}, repo.lastFilter.Facilities)
}

func TestListStaffSeesOnlySelf(t *testing.T) {
	svc, repo, _ := newUserServiceFixture()
	staff := authz.Actor{ID: "staff-1", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff, Region: "Dakar", Facility: "Clinic X"}

	_, _, err := svc.List(context.Background(), staff, authz.ScopeHintNone, models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, "staff-1", repo.lastFilter.ID)
}

func TestUpdateSelfAlwaysAllowed(t *testing.T) {
	svc, repo, _ := newUserServiceFixture()
	repo.users["staff-1"] = &models.User{
		ID: "staff-1", Email: "staff@example.sn", Role: models.RoleAgent,
		SubLevel: models.SubLevelFacilityStaff, Region: "Dakar", Facility: "Clinic X", Active: true,
	}
	staff := authz.Actor{ID: "staff-1", Role: models.RoleAgent, SubLevel: models.SubLevelFacilityStaff, Region: "Dakar", Facility: "Clinic X"}

	name := "Renamed"
	user, err := svc.Update(context.Background(), staff, "staff-1", models.UpdateUserRequest{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", user.FullName)
}

func TestDeleteOutsideRegionForbidden(t *testing.T) {
	svc, repo, _ := newUserServiceFixture()
	repo.users["agent-t"] = &models.User{
		ID: "agent-t", Email: "t@example.sn", Role: models.RoleAgent,
		SubLevel: models.SubLevelFacilityStaff, Region: "Thiès", Facility: "Clinic T", Active: true,
	}
	regional := authz.Actor{ID: "reg-1", Role: models.RoleRegional, Region: "Dakar"}

	err := svc.Delete(context.Background(), regional, "agent-t")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
