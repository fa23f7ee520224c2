package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yourname/fixyoursleep/internal"
)

type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider verifies HS256 tokens whose subject is the user id.
type JWTProvider struct {
	secret []byte
	logger internal.Logger
}

func NewJWTProvider(secret string, logger internal.Logger) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), logger: logger}
}

func (p *JWTProvider) Issue(user *internal.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func (p *JWTProvider) CurrentUser(ctx context.Context, token string) (*internal.User, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		p.logger.Debugf("rejecting token: %v", err)
		return nil, internal.ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, internal.ErrUnauthenticated
	}
	return &internal.User{ID: claims.Subject, Token: token, Name: claims.Name, Email: claims.Email}, nil
}
