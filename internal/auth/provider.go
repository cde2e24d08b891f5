package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/repository"
)

// Provider is the identity system behind sign-in. The deletion workflows
// depend on exactly this surface: Reauthenticate must be called with a
// fresh password before Delete, and Delete runs only after every content
// document belonging to the account is gone.
type Provider interface {
	// SignUp registers credentials for a user document that already exists
	// in the content store.
	SignUp(ctx context.Context, userID, email, password string) error
	// SignIn verifies the password and returns the user id the credentials
	// belong to.
	SignIn(ctx context.Context, email, password string) (string, error)
	// Reauthenticate re-verifies the password for an already signed-in
	// user. A wrong password surfaces as apperror.ErrReauthNeeded so the
	// caller can ask for the password again rather than fail the workflow.
	Reauthenticate(ctx context.Context, userID, password string) error
	// Delete erases the identity record. Idempotent.
	Delete(ctx context.Context, userID string) error
}

// LocalProvider implements Provider on the credentials table.
type LocalProvider struct {
	creds     repository.CredentialRepository
	passwords *PasswordService
}

func NewLocalProvider(creds repository.CredentialRepository, passwords *PasswordService) *LocalProvider {
	return &LocalProvider{creds: creds, passwords: passwords}
}

func (p *LocalProvider) SignUp(ctx context.Context, userID, email, password string) error {
	hash, err := p.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("auth: sign-up: %w", err)
	}
	return p.creds.Create(ctx, &repository.Credential{
		UserID:       userID,
		Email:        email,
		PasswordHash: hash,
	})
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Same error as a wrong password, so sign-in can't be used to
			// discover which emails are registered.
			return "", apperror.Unauthorized("Incorrect email or password.")
		}
		return "", err
	}
	if err := p.passwords.Verify(cred.PasswordHash, password); err != nil {
		return "", apperror.Unauthorized("Incorrect email or password.")
	}
	return cred.UserID, nil
}

func (p *LocalProvider) Reauthenticate(ctx context.Context, userID, password string) error {
	cred, err := p.creds.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ReauthNeeded()
		}
		return err
	}
	if err := p.passwords.Verify(cred.PasswordHash, password); err != nil {
		return apperror.ReauthNeeded()
	}
	return nil
}

func (p *LocalProvider) Delete(ctx context.Context, userID string) error {
	return p.creds.Delete(ctx, userID)
}
