package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoudou1/vaxcare-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "sub_level", "region", "facility", "active", "last_login", "created_at", "updated_at"})
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("1", "fatou@example.sn", "hash", "Fatou Ndiaye", string(models.RoleRegional), "", "Dakar", "", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, sub_level, region, facility, active, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("fatou@example.sn").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "fatou@example.sn")
	require.NoError(t, err)
	assert.Equal(t, "fatou@example.sn", user.Email)
	assert.Equal(t, models.RoleRegional, user.Role)
	assert.Equal(t, "Dakar", user.Region)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersFacilityInSet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	role := models.RoleAgent
	listRows := userRows().
		AddRow("1", "a@example.sn", "hash", "A", string(models.RoleAgent), "facility_staff", "Dakar", "Clinic X", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, sub_level, region, facility, active, last_login, created_at, updated_at FROM users WHERE 1=1 AND role = $1 AND region = $2 AND facility IN ($3, $4) ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(role, "Dakar", "Clinic X", "Health Post Y").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1 AND region = $2 AND facility IN ($3, $4)")).
		WithArgs(role, "Dakar", "Clinic X", "Health Post Y").
		WillReturnRows(countRows)

	users, total, err := repo.List(context.Background(), models.UserFilter{
		Role:       &role,
		Region:     "Dakar",
		Facilities: []string{"Clinic X", "Health Post Y"},
	})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersMatchNoneSkipsQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	users, total, err := repo.List(context.Background(), models.UserFilter{MatchNone: true})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRegionalOccupiedSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CreateRegional(context.Background(), &models.User{
		Email:    "second@example.sn",
		Role:     models.RoleRegional,
		Region:   "Dakar",
		Active:   true,
		FullName: "Second Regional",
	})
	assert.ErrorIs(t, err, ErrUniqueRoleViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDistrictActorFreeSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Email:    "district@example.sn",
		Role:     models.RoleDistrict,
		Region:   "Dakar",
		Facility: "District A",
		Active:   true,
	}
	err := repo.CreateDistrictActor(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMigrationPatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $2, sub_level = $3, updated_at = $4 WHERE id = $1 AND role = 'agent'")).
		WithArgs("u1", models.RoleDistrict, models.SubLevelNone, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyMigrationPatch(context.Background(), "u1", models.RoleDistrict, models.SubLevelNone)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasRegionalAdmin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM users WHERE role = 'regional' AND region = $1 AND active = TRUE)")).
		WithArgs("Dakar").
		WillReturnRows(rows)

	exists, err := repo.HasRegionalAdmin(context.Background(), "Dakar")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
