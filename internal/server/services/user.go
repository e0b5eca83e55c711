// Package services contains server-side business logic. This file implements
// UserService, which handles registration and login and issues JWTs.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/server/auth"
	"github.com/certsync/certsync/internal/server/config"
	"github.com/certsync/certsync/internal/server/models"
	"github.com/certsync/certsync/internal/server/repositories/users"
	"github.com/google/uuid"
)

// UserService provides authentication-related operations:
// - Register: create accounts with bcrypt-hashed passwords
// - Login: verify credentials and mint an access token
type UserService struct {
	users                       users.Repository
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using the repository and server config.
func NewUserService(repo users.Repository, cfg *config.Config) *UserService {
	return &UserService{
		users:                       repo,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register creates a new account. A taken username yields common.ErrConflict.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{ID: uuid.NewString(), Username: username, PasswordHash: hash}
	u, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrConflict
		}
		return nil, common.ErrInternal
	}
	return u, nil
}

// Login verifies the password against the stored bcrypt hash and, on
// success, returns a signed access token. Unknown users and wrong passwords
// are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUnauthorized
		}
		return "", common.ErrInternal
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrInternal
	}
	return token, nil
}
