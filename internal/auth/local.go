package auth

import (
	"context"
	"strings"

	"github.com/yourname/fixyoursleep/internal"
)

const demoUserID = "u1"

// LocalAuthProvider accepts a single shared development token. A suffix
// ":<uid>" selects another user so several phones can be simulated.
type LocalAuthProvider struct {
	Token  string
	logger internal.Logger
}

func NewLocalAuthProvider(token string, logger internal.Logger) *LocalAuthProvider {
	return &LocalAuthProvider{Token: token, logger: logger}
}

func (a *LocalAuthProvider) CurrentUser(ctx context.Context, token string) (*internal.User, error) {
	base, uid, found := strings.Cut(token, ":")
	if base != a.Token || (found && uid == "") {
		a.logger.Warnf("invalid token")
		return nil, internal.ErrUnauthenticated
	}
	if !found {
		uid = demoUserID
	}
	return &internal.User{ID: uid, Token: token, Name: "Demo User"}, nil
}
