package services

import (
	"context"
	goerrors "errors"
	"log/slog"

	"aethermeet/auth"
	"aethermeet/domain/event"
	"aethermeet/errors"
	"aethermeet/repositories"
)

type ICredentialService interface {
	Protect(code string, passphrase *string) error
	Verify(code string, passphrase *string) error
	Forget(code string) error
	IssueToken(username string) (string, error)
	Authenticate(token string) (string, error)
}

// CredentialService guards room passphrases and issues session tokens.
// Passphrases are optional: a room without a stored secret is open.
type CredentialService struct {
	store  repositories.ICredentialStore
	tokens auth.TokenManager
}

func NewCredentialService(store repositories.ICredentialStore, tokens auth.TokenManager) *CredentialService {
	return &CredentialService{store: store, tokens: tokens}
}

// Protect hashes and stores a room passphrase. A nil passphrase leaves the
// room open.
func (s *CredentialService) Protect(code string, passphrase *string) error {
	if passphrase == nil {
		return nil
	}
	hash, err := auth.HashPassphrase(*passphrase)
	if err != nil {
		return err
	}
	return s.store.StoreSecret(code, repositories.RoomSecret{Primary: hash})
}

// Verify checks a join passphrase against the stored secret.
// Failures collapse to ErrInvalidCredentials so callers cannot probe which
// rooms are protected.
func (s *CredentialService) Verify(code string, passphrase *string) error {
	secret, err := s.store.GetSecret(code)
	if goerrors.Is(err, errors.ErrNotFound) {
		return nil // open room
	}
	if err != nil {
		return err
	}
	if passphrase == nil {
		return errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassphrase(*passphrase, secret.Primary)
	if err == nil && match {
		return nil
	}
	if secret.Secondary != nil {
		match, err = auth.ComparePassphrase(*passphrase, *secret.Secondary)
		if err == nil && match {
			return nil
		}
	}
	return errors.ErrInvalidCredentials
}

func (s *CredentialService) Forget(code string) error {
	return s.store.DeleteSecret(code)
}

func (s *CredentialService) IssueToken(username string) (string, error) {
	return s.tokens.Generate(username)
}

// Authenticate resolves a session token to its username.
func (s *CredentialService) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}
	return claims.Username, nil
}

// CredentialJanitor drops a room's secret once the room is destroyed. It is
// registered as a permanent sink on the fanout pipeline.
type CredentialJanitor struct {
	credentials ICredentialService
	log         *slog.Logger
}

func NewCredentialJanitor(credentials ICredentialService, log *slog.Logger) CredentialJanitor {
	return CredentialJanitor{credentials: credentials, log: log}
}

func (j CredentialJanitor) Consume(_ context.Context, e event.DomainEvent) error {
	if destroyed, ok := e.(event.RoomDestroyed); ok {
		if err := j.credentials.Forget(destroyed.Code); err != nil {
			j.log.Warn("failed to drop room secret", "room", destroyed.Code, "error", err)
		}
	}
	return nil
}
