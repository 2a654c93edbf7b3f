package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("mfa code required")
	ErrInvalidMFACode     = errors.New("invalid mfa code")
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (User, error)
	FindActiveUserByID(ctx context.Context, userID string) (User, error)
	CreateUser(ctx context.Context, user User) (string, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	SetMFASecret(ctx context.Context, userID, secret string) error
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
}

// Sealer protects MFA secrets at rest.
type Sealer interface {
	SealString(value string) (string, error)
	OpenString(value string) (string, error)
}

type Service struct {
	store    StoreAPI
	secret   string
	tokenTTL time.Duration
	sealer   Sealer
}

func NewService(store StoreAPI, secret string, tokenTTL time.Duration) *Service {
	return &Service{store: store, secret: secret, tokenTTL: tokenTTL}
}

func (s *Service) WithSealer(sealer Sealer) *Service {
	s.sealer = sealer
	return s
}

type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// Login checks the password and, for accounts with MFA enabled, the current TOTP code.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (LoginResult, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if user.MFAEnabled {
		if strings.TrimSpace(mfaCode) == "" {
			return LoginResult{}, ErrMFARequired
		}
		secret, err := s.openSecret(user.MFASecret)
		if err != nil {
			return LoginResult{}, err
		}
		if !ValidateTOTP(secret, mfaCode) {
			return LoginResult{}, ErrInvalidMFACode
		}
	}

	token, err := GenerateToken(s.secret, Claims{UserID: user.ID, RoleName: user.Role, Department: user.Department}, s.tokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("last login update failed", "userId", user.ID, "err", err)
	}
	return LoginResult{AccessToken: token, ExpiresAt: time.Now().Add(s.tokenTTL), User: user}, nil
}

// EnsureUser creates the user when no account with that email exists.
func (s *Service) EnsureUser(ctx context.Context, user User, password string) error {
	if strings.TrimSpace(user.Email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	if !KnownRole(user.Role) {
		return errors.New("unknown role: " + user.Role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	id, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return err
	}
	if id != "" {
		slog.Info("user created", "userId", id, "role", user.Role)
	}
	return nil
}
