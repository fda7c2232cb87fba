package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

func TestFindByNameAbsentReturnsNilNil(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, region, type, parent_district, address, phone, active, created_at, updated_at FROM health_facilities WHERE name = $1 AND active = TRUE LIMIT 1")).
		WithArgs("Nowhere").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	facility, err := repo.FindByName(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, facility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacilityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "region", "type", "parent_district", "address", "phone", "active", "created_at", "updated_at"}).
		AddRow("f1", "District A", "Dakar", string(models.FacilityTypeDistrict), "", "", "", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, region, type, parent_district, address, phone, active, created_at, updated_at FROM health_facilities WHERE name = $1 AND active = TRUE LIMIT 1")).
		WithArgs("District A").
		WillReturnRows(rows)

	facility, err := repo.FindByName(context.Background(), "District A")
	require.NoError(t, err)
	require.NotNil(t, facility)
	assert.Equal(t, models.FacilityTypeDistrict, facility.Type)
	assert.Equal(t, "Dakar", facility.Region)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNamesUnderDistrict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacilityRepository(db)

	rows := sqlmock.NewRows([]string{"name"}).
		AddRow("Clinic X").
		AddRow("District A").
		AddRow("Health Post Y")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM health_facilities WHERE active = TRUE AND (name = $1 OR parent_district = $1) ORDER BY name")).
		WithArgs("District A").
		WillReturnRows(rows)

	names, err := repo.NamesUnderDistrict(context.Background(), "District A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Clinic X", "District A", "Health Post Y"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFacilityNameConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacilityRepository(db)

	mock.ExpectExec("INSERT INTO health_facilities").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &models.HealthFacility{
		Name:   "Clinic X",
		Region: "Dakar",
		Type:   models.FacilityTypeClinic,
		Active: true,
	})
	assert.ErrorIs(t, err, ErrFacilityNameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFacility(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacilityRepository(db)

	mock.ExpectExec("INSERT INTO health_facilities").WillReturnResult(sqlmock.NewResult(1, 1))

	facility := &models.HealthFacility{
		Name:           "Health Post Z",
		Region:         "Dakar",
		Type:           models.FacilityTypeHealthPost,
		ParentDistrict: "District A",
		Active:         true,
	}
	err := repo.Create(context.Background(), facility)
	require.NoError(t, err)
	assert.NotEmpty(t, facility.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFacilitiesUnderParent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacilityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "region", "type", "parent_district", "address", "phone", "active", "created_at", "updated_at"}).
		AddRow("f2", "Clinic X", "Dakar", string(models.FacilityTypeClinic), "District A", "", "", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, region, type, parent_district, address, phone, active, created_at, updated_at FROM health_facilities WHERE 1=1 AND (name = $1 OR parent_district = $1) ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs("District A").
		WillReturnRows(rows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM health_facilities WHERE 1=1 AND (name = $1 OR parent_district = $1)")).
		WithArgs("District A").
		WillReturnRows(countRows)

	facilities, total, err := repo.List(context.Background(), models.FacilityFilter{ParentDistrict: "District A"})
	require.NoError(t, err)
	assert.Len(t, facilities, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
