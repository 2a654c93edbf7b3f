package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/pquerna/otp/totp"
)

const mfaIssuer = "reviewflow"

type MFASetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauthUrl"`
}

func ValidateTOTP(secret, code string) bool {
	if secret == "" {
		return false
	}
	return totp.Validate(strings.TrimSpace(code), secret)
}

// SetupMFA issues a new TOTP secret for the user. It takes effect once EnableMFA confirms a code.
func (s *Service) SetupMFA(ctx context.Context, userID string) (MFASetup, error) {
	user, err := s.store.FindActiveUserByID(ctx, userID)
	if err != nil {
		return MFASetup{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: mfaIssuer, AccountName: user.Email})
	if err != nil {
		return MFASetup{}, err
	}
	stored, err := s.sealSecret(key.Secret())
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.store.SetMFASecret(ctx, userID, stored); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), URL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, userID, code string) error {
	user, err := s.store.FindActiveUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == "" {
		return errors.New("mfa setup has not been started")
	}
	secret, err := s.openSecret(user.MFASecret)
	if err != nil {
		return err
	}
	if !ValidateTOTP(secret, code) {
		return ErrInvalidMFACode
	}
	return s.store.SetMFAEnabled(ctx, userID, true)
}

func (s *Service) DisableMFA(ctx context.Context, userID, code string) error {
	user, err := s.store.FindActiveUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return nil
	}
	secret, err := s.openSecret(user.MFASecret)
	if err != nil {
		return err
	}
	if !ValidateTOTP(secret, code) {
		return ErrInvalidMFACode
	}
	return s.store.SetMFAEnabled(ctx, userID, false)
}

func (s *Service) sealSecret(secret string) (string, error) {
	if s.sealer == nil {
		return secret, nil
	}
	return s.sealer.SealString(secret)
}

func (s *Service) openSecret(stored string) (string, error) {
	if s.sealer == nil || stored == "" {
		return stored, nil
	}
	return s.sealer.OpenString(stored)
}
