package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "email", "name", "role", "department", "password_hash", "mfa_enabled", "coalesce"}

const testMFASecret = "JBSWY3DPEHPK3PXP"

func TestLoginIssuesTokenWithRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hash, err := HashPassword("pa55word")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT id, email, name, role, department, password_hash, mfa_enabled").
		WithArgs("lead@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("u-1", "lead@example.com", "Lead", RoleManager, "Sales", hash, false, ""))
	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(NewStore(mock), "secret", time.Hour)
	result, err := svc.Login(context.Background(), " lead@example.com ", "pa55word", "")
	require.NoError(t, err)

	claims, err := ParseToken("secret", result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, RoleManager, claims.RoleName)
	assert.Equal(t, "Sales", claims.Department)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginRejectsUnknownUserAndBadPassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hash, err := HashPassword("right")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT id, email, name, role, department, password_hash, mfa_enabled").
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id, email, name, role, department, password_hash, mfa_enabled").
		WithArgs("hr@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("u-2", "hr@example.com", "HR", RoleHR, "", hash, false, ""))

	svc := NewService(NewStore(mock), "secret", time.Hour)
	_, err = svc.Login(context.Background(), "ghost@example.com", "x", "")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = svc.Login(context.Background(), "hr@example.com", "wrong", "")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUserSkipsBlankAndRejectsUnknownRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin@example.com", "Admin", RoleAdmin, "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("u-9"))

	svc := NewService(NewStore(mock), "secret", time.Hour)
	ctx := context.Background()
	assert.NoError(t, svc.EnsureUser(ctx, User{Email: "", Role: RoleAdmin}, "pw"))
	assert.Error(t, svc.EnsureUser(ctx, User{Email: "x@example.com", Role: "root"}, "pw"))
	assert.NoError(t, svc.EnsureUser(ctx, User{Email: "admin@example.com", Name: "Admin", Role: RoleAdmin}, "pw"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginRequiresMFACodeWhenEnabled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hash, err := HashPassword("pa55word")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		mock.ExpectQuery("SELECT id, email, name, role, department, password_hash, mfa_enabled").
			WithArgs("hr@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns).AddRow("u-3", "hr@example.com", "HR", RoleHR, "", hash, true, testMFASecret))
	}
	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs("u-3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(NewStore(mock), "secret", time.Hour)
	ctx := context.Background()

	_, err = svc.Login(ctx, "hr@example.com", "pa55word", "")
	assert.ErrorIs(t, err, ErrMFARequired)
	_, err = svc.Login(ctx, "hr@example.com", "pa55word", "000000x")
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	code, err := totp.GenerateCode(testMFASecret, time.Now())
	require.NoError(t, err)
	result, err := svc.Login(ctx, "hr@example.com", "pa55word", code)
	require.NoError(t, err)
	assert.True(t, result.User.MFAEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetupAndEnableMFA(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, email, name, role, department, password_hash, mfa_enabled").
		WithArgs("u-4").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow("u-4", "admin@example.com", "Admin", RoleAdmin, "", "hash", false, ""))
	mock.ExpectExec("UPDATE users SET mfa_secret").
		WithArgs(pgxmock.AnyArg(), "u-4").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(NewStore(mock), "secret", time.Hour)
	ctx := context.Background()
	setup, err := svc.SetupMFA(ctx, "u-4")
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.URL, "otpauth://totp/")

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	mock.ExpectQuery("SELECT id, email, name, role, department, password_hash, mfa_enabled").
		WithArgs("u-4").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow("u-4", "admin@example.com", "Admin", RoleAdmin, "", "hash", false, setup.Secret))
	mock.ExpectExec("UPDATE users SET mfa_enabled").
		WithArgs(true, "u-4").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, svc.EnableMFA(ctx, "u-4", code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type prefixSealer struct{}

func (prefixSealer) SealString(value string) (string, error) { return "sealed:" + value, nil }

func (prefixSealer) OpenString(value string) (string, error) {
	return strings.TrimPrefix(value, "sealed:"), nil
}

func TestMFASecretIsSealedAtRest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT id, email, name, role, department, password_hash, mfa_enabled").
		WithArgs("hr@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow("u-5", "hr@example.com", "HR", RoleHR, "", hash, true, "sealed:"+testMFASecret))
	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs("u-5").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(NewStore(mock), "secret", time.Hour).WithSealer(prefixSealer{})
	code, err := totp.GenerateCode(testMFASecret, time.Now())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "hr@example.com", "s3cret!", code)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
