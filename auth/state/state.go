package state

import (
	"context"

	"github.com/gravitational/trace"
)

// Names under which the credential pair is stored.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Credentials is the access/refresh token pair. An empty string means the
// token is absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Store is a synchronous name/value store for credentials.
type Store interface {
	// Get returns the stored value, or an empty string when the name is absent.
	Get(ctx context.Context, name string) (string, error)
	// Set stores the value under the name.
	Set(ctx context.Context, name, value string) error
	// Remove deletes the name. Removing an absent name is not an error.
	Remove(ctx context.Context, name string) error
}

// GetCredentials reads both tokens.
func GetCredentials(ctx context.Context, s Store) (Credentials, error) {
	access, err := s.Get(ctx, AccessTokenKey)
	if err != nil {
		return Credentials{}, trace.Wrap(err)
	}
	refresh, err := s.Get(ctx, RefreshTokenKey)
	if err != nil {
		return Credentials{}, trace.Wrap(err)
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// PutCredentials writes the non-empty tokens of the pair.
func PutCredentials(ctx context.Context, s Store, creds Credentials) error {
	if creds.AccessToken != "" {
		if err := s.Set(ctx, AccessTokenKey, creds.AccessToken); err != nil {
			return trace.Wrap(err)
		}
	}
	if creds.RefreshToken != "" {
		if err := s.Set(ctx, RefreshTokenKey, creds.RefreshToken); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

// ClearCredentials removes both tokens.
func ClearCredentials(ctx context.Context, s Store) error {
	return trace.NewAggregate(
		s.Remove(ctx, AccessTokenKey),
		s.Remove(ctx, RefreshTokenKey),
	)
}
