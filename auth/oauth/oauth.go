package oauth

import (
	"context"

	"github.com/pbis/authclient/auth/state"
)

// Refresher exchanges a refresh token for a new credential pair. The returned
// RefreshToken is empty when the endpoint does not rotate it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error)
}

// RefresherFunc adapts a plain function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (*state.Credentials, error)

// Refresh implements Refresher.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error) {
	return f(ctx, refreshToken)
}

// Authenticator obtains a credential pair from user credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*state.Credentials, error)
}
