package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"reviewflow/internal/platform/querier"
)

var ErrUserNotFound = errors.New("user not found")

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Department   string `json:"department,omitempty"`
	MFAEnabled   bool   `json:"mfaEnabled"`
	PasswordHash string `json:"-"`
	MFASecret    string `json:"-"`
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (User, error) {
	var out User
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, name, role, department, password_hash, mfa_enabled, COALESCE(mfa_secret, '')
    FROM users
    WHERE lower(email) = lower($1) AND active
  `, email).Scan(&out.ID, &out.Email, &out.Name, &out.Role, &out.Department, &out.PasswordHash, &out.MFAEnabled, &out.MFASecret)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return out, err
}

func (s *Store) CreateUser(ctx context.Context, user User) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (email, name, role, department, password_hash)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (email) DO NOTHING
    RETURNING id
  `, user.Email, user.Name, user.Role, user.Department, user.PasswordHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) FindActiveUserByID(ctx context.Context, userID string) (User, error) {
	var out User
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, name, role, department, password_hash, mfa_enabled, COALESCE(mfa_secret, '')
    FROM users
    WHERE id = $1 AND active
  `, userID).Scan(&out.ID, &out.Email, &out.Name, &out.Role, &out.Department, &out.PasswordHash, &out.MFAEnabled, &out.MFASecret)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return out, err
}

// SetMFASecret stores a pending secret and leaves MFA disabled until a code confirms it.
func (s *Store) SetMFASecret(ctx context.Context, userID, secret string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_secret = $1, mfa_enabled = false WHERE id = $2", secret, userID)
	return err
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_enabled = $1 WHERE id = $2", enabled, userID)
	return err
}
