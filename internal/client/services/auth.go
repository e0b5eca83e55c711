package services

import (
	"context"
	"fmt"

	"github.com/certsync/certsync/internal/client/gateway"
)

// AuthService obtains and installs the bearer credential the gateway client
// attaches to every request.
type AuthService interface {
	Login(ctx context.Context, username, password string) error
	Ping(ctx context.Context) error
}

type authService struct {
	gw gateway.Client
}

// NewAuthService returns an AuthService over the gateway client.
func NewAuthService(gw gateway.Client) AuthService {
	return &authService{gw: gw}
}

func (s *authService) Login(ctx context.Context, username, password string) error {
	if err := s.gw.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

func (s *authService) Ping(ctx context.Context) error {
	return s.gw.Ping(ctx)
}
