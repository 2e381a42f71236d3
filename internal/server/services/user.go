// Package services contains server-side business logic. This file implements
// UserService: registration, login and password reset via a secret phrase.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/repomanager"
)

const (
	minUserNameLen = 3
	minPasswordLen = 6
)

// Hasher is the credential store the service hashes and verifies secrets with.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      Hasher
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher Hasher, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		logger:      logger.With("module", "users"),
	}
}

// Register validates the input, rejects taken usernames with
// common.ErrDuplicateUser and stores hashes of both secrets.
func (s *UserService) Register(ctx context.Context, username, password, confirm, secretPhrase string) (*models.Identity, error) {
	if err := validatePassword(password, confirm); err != nil {
		return nil, err
	}
	if len(username) < minUserNameLen {
		return nil, fmt.Errorf("%w: username must be at least %d characters", common.ErrValidation, minUserNameLen)
	}
	if secretPhrase == "" {
		return nil, fmt.Errorf("%w: secret phrase is required", common.ErrValidation)
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.GetUserByLogin(ctx, username)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateUser
	case !errors.Is(err, common.ErrNotFound):
		return nil, storeErr(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrOperationFailed, err)
	}
	phraseHash, err := s.hasher.Hash(secretPhrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrOperationFailed, err)
	}

	// A concurrent registration can still win the race; the unique index
	// reports it as ErrDuplicateUser.
	u, err := repo.Create(ctx, &models.User{
		UserName:         username,
		PasswordHash:     passwordHash,
		SecretPhraseHash: phraseHash,
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return &models.Identity{ID: u.ID, UserName: u.UserName}, nil
}

// Login returns the caller's identity. The stored hashes never leave the service.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.Identity, error) {
	u, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		return nil, storeErr(err)
	}
	if !u.IsActive {
		return nil, common.ErrAccountDisabled
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, common.ErrBadCredentials
	}
	return &models.Identity{ID: u.ID, UserName: u.UserName}, nil
}

// ResetPassword replaces the password of username once secretPhrase has been
// verified against the stored phrase hash.
func (s *UserService) ResetPassword(ctx context.Context, username, secretPhrase, newPassword, confirm string) error {
	if err := validatePassword(newPassword, confirm); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)

	u, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		return storeErr(err)
	}
	if !s.hasher.Verify(secretPhrase, u.SecretPhraseHash) {
		return common.ErrBadSecretPhrase
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrOperationFailed, err)
	}
	if err := repo.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return storeErr(err)
	}

	s.logger.Info(ctx, "password reset", "user_id", u.ID)
	return nil
}

func validatePassword(password, confirm string) error {
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	}
	return nil
}

// storeErr passes business sentinels through and turns everything else the
// repositories return into ErrOperationFailed with the cause attached.
func storeErr(err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrDuplicateUser):
		return err
	default:
		return fmt.Errorf("%w: %w", common.ErrOperationFailed, err)
	}
}
