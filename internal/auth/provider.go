package auth

import (
	"context"
	"fmt"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/config"
)

// Provider resolves a bearer token to the current user. Unknown or invalid
// tokens yield internal.ErrUnauthenticated.
type Provider interface {
	CurrentUser(ctx context.Context, token string) (*internal.User, error)
}

func NewProvider(cfg *config.Config, logger internal.Logger) (Provider, error) {
	switch cfg.AuthMode {
	case "local":
		return NewLocalAuthProvider(cfg.AuthToken, logger), nil
	case "remote":
		return NewRemoteAuthProvider(cfg.AuthServiceURL, logger), nil
	case "jwt":
		return NewJWTProvider(cfg.JWTSecret, logger), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.AuthMode)
	}
}
