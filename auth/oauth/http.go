package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"
	jsoniter "github.com/json-iterator/go"

	"github.com/pbis/authclient/auth/state"
	"github.com/pbis/authclient/lib"
)

const (
	authMaxConns    = 10
	authHTTPTimeout = 15 * time.Second

	refreshPath = "api/auth/refresh/"
	loginPath   = "api/auth/login/"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EndpointError is a non-2xx answer from the token endpoints.
type EndpointError struct {
	StatusCode int
	Body       []byte
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Body)
}

// RefreshRequest is the refresh endpoint payload.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// LoginRequest is the login endpoint payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is what both token endpoints return.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// HTTPClient talks to the token endpoints of the backend.
type HTTPClient struct {
	client *resty.Client
}

// NewHTTPClient returns a token endpoint client for the backend at baseURL.
// The refresh call goes through its own resty client so it never carries the
// expired bearer token of the request that triggered it.
func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, trace.BadParameter("missing backend base URL")
	}
	baseURL, err := lib.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	client := resty.
		NewWithClient(&http.Client{
			Timeout: authHTTPTimeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     authMaxConns,
				MaxIdleConnsPerHost: authMaxConns,
			},
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBaseURL(baseURL)
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	return &HTTPClient{client: client}, nil
}

// Refresh implements Refresher.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error) {
	return c.exchange(ctx, refreshPath, RefreshRequest{Refresh: refreshToken})
}

// Login implements Authenticator.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (*state.Credentials, error) {
	creds, err := c.exchange(ctx, loginPath, LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if creds.RefreshToken == "" {
		return nil, trace.BadParameter("login response carries no refresh token")
	}
	return creds, nil
}

func (c *HTTPClient) exchange(ctx context.Context, path string, payload interface{}) (*state.Credentials, error) {
	var result TokenResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post(path)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if resp.IsError() {
		return nil, trace.Wrap(&EndpointError{StatusCode: resp.StatusCode(), Body: resp.Body()})
	}
	if result.Access == "" {
		return nil, trace.BadParameter("token endpoint response carries no access token")
	}

	return &state.Credentials{
		AccessToken:  result.Access,
		RefreshToken: result.Refresh,
	}, nil
}

var (
	_ Refresher     = &HTTPClient{}
	_ Authenticator = &HTTPClient{}
)
