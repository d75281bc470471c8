// Package client sends requests to the backend on behalf of a logged in
// user. It attaches the stored access token, refreshes it through the
// auth.Coordinator when the backend rejects it, replays the request once, and
// turns every failure into exactly one user notification.
package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/pbis/authclient/auth"
	"github.com/pbis/authclient/auth/state"
	"github.com/pbis/authclient/lib"
	"github.com/pbis/authclient/lib/logger"
	"github.com/pbis/authclient/lib/metrics"
	"github.com/pbis/authclient/notify"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 15 * time.Second
	// RequestIDHeader carries the request correlation id.
	RequestIDHeader = "X-Request-ID"

	maxConns = 100
	// failureNetwork labels failures with no HTTP response.
	failureNetwork = "network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root every request path is resolved against.
	BaseURL string
	// Coordinator refreshes expired access tokens. Required.
	Coordinator *auth.Coordinator
	// Notifier receives user-facing notifications. Defaults to notify.LogEmitter.
	Notifier notify.Emitter
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// ProactiveRefreshSkew refreshes a JWT access token before the first
	// attempt when it expires within this window. Zero disables it.
	ProactiveRefreshSkew time.Duration
	Clock                clockwork.Clock
	Metrics              *metrics.Metrics
	// HTTPClient overrides the default transport.
	HTTPClient *http.Client
}

// CheckAndSetDefaults validates the config and fills in the defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.BaseURL == "" {
		return trace.BadParameter("missing backend base URL")
	}
	baseURL, err := lib.NormalizeBaseURL(c.BaseURL)
	if err != nil {
		return trace.Wrap(err)
	}
	c.BaseURL = baseURL
	if c.Coordinator == nil {
		return trace.BadParameter("missing refresh coordinator")
	}
	if c.Notifier == nil {
		c.Notifier = notify.LogEmitter{}
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Request describes one logical request. It is replayed verbatim after a
// token refresh, so Body must be safe to encode twice.
type Request struct {
	// ID is sent as X-Request-ID. Generated when empty.
	ID     string
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   interface{}
	// Result, when set, receives the decoded JSON body of a successful response.
	Result interface{}
}

// Client is the request dispatcher.
type Client struct {
	cfg    Config
	client *resty.Client
}

// New returns a dispatcher for the backend at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxConnsPerHost:     maxConns,
				MaxIdleConnsPerHost: maxConns,
			},
		}
	}
	client := resty.NewWithClient(httpClient).
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	// Non-2xx responses come back from Execute as *APIError.
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if !resp.IsError() {
			return nil
		}
		return &APIError{
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
			Kind:       Classify(resp.StatusCode(), resp.Body()),
		}
	})

	return &Client{cfg: cfg, client: client}, nil
}

// Get is a shorthand for Send with a GET request.
func (c *Client) Get(ctx context.Context, path string, result interface{}) (*resty.Response, error) {
	return c.Send(ctx, Request{Method: http.MethodGet, Path: path, Result: result})
}

// Post is a shorthand for Send with a POST request.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) (*resty.Response, error) {
	return c.Send(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Result: result})
}

// Logout clears the stored credentials and invokes the logout callback.
func (c *Client) Logout(ctx context.Context) {
	c.cfg.Coordinator.ForceLogout(ctx)
}

// Send transmits the request with the stored access token. An expired token
// is refreshed and the request replayed once. Every failure emits exactly one
// notification, except for queued followers of a failed refresh and caller
// cancellation, and is returned as is.
func (c *Client) Send(ctx context.Context, req Request) (*resty.Response, error) {
	if req.ID == "" {
		req.ID = req.Header.Get(RequestIDHeader)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	ctx, _ = logger.WithFields(ctx, log.Fields{
		"request_id": req.ID,
		"method":     req.Method,
		"path":       req.Path,
	})

	token, err := c.cfg.Coordinator.Store().Get(ctx, state.AccessTokenKey)
	if err != nil {
		logger.Get(ctx).WithError(err).Warn("Failed to read the access token, sending unauthenticated")
		token = ""
	}
	if c.cfg.ProactiveRefreshSkew > 0 && auth.ExpiresWithin(token, c.cfg.Clock.Now(), c.cfg.ProactiveRefreshSkew) {
		logger.Get(ctx).Debug("Access token is about to expire, refreshing first")
		token, err = c.cfg.Coordinator.RefreshOrQueue(ctx)
		if err != nil {
			c.refreshFailed(ctx, err)
			return nil, trace.Wrap(err)
		}
	}

	return c.send(ctx, req, 0, token)
}

func (c *Client) send(ctx context.Context, req Request, attempt int, token string) (*resty.Response, error) {
	ctx, log := logger.With(ctx, "attempt", attempt)

	r := c.client.R().SetContext(ctx)
	if req.Header != nil {
		r.SetHeaderMultiValues(req.Header)
	}
	r.SetHeader(RequestIDHeader, req.ID)
	if token != "" {
		r.SetAuthToken(token)
	}
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if req.Result != nil {
		r.SetResult(req.Result)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err == nil {
		log.WithField("status", resp.StatusCode()).Debug("Request succeeded")
		return resp, nil
	}

	apiErr, ok := AsAPIError(err)
	if !ok {
		if lib.IsCanceled(err) && ctx.Err() != nil {
			return resp, trace.Wrap(err)
		}
		log.WithError(err).Warn("Request failed without a response")
		c.cfg.Metrics.Failure(failureNetwork)
		c.notify(ctx, Message(err), notify.TypeError)
		return resp, trace.Wrap(err)
	}

	log = log.WithField("status", apiErr.StatusCode)
	c.cfg.Metrics.Failure(apiErr.Kind.String())
	switch {
	case apiErr.Kind == FailureAccountInvalid:
		log.Warn("Account is no longer valid, logging out")
		c.cfg.Coordinator.ForceLogout(ctx)
		c.notify(ctx, AccountIssueMessage, notify.TypeError)
		return resp, trace.Wrap(apiErr)

	case apiErr.Kind == FailureUnauthorized && attempt == 0:
		// A cycle that finished while this attempt was in flight already
		// rotated the token.
		current, err := c.cfg.Coordinator.Store().Get(ctx, state.AccessTokenKey)
		if err == nil && current != "" && current != token {
			log.Debug("Access token was replaced meanwhile, replaying")
			return c.send(ctx, req, attempt+1, current)
		}
		log.Debug("Access token rejected, refreshing")
		newToken, err := c.cfg.Coordinator.RefreshOrQueue(ctx)
		if err != nil {
			c.refreshFailed(ctx, err)
			return resp, trace.Wrap(err)
		}
		return c.send(ctx, req, attempt+1, newToken)

	default:
		log.WithError(apiErr).Debug("Request failed")
		c.notify(ctx, Message(apiErr), notify.TypeError)
		return resp, trace.Wrap(apiErr)
	}
}

// refreshFailed emits the notification for a failed RefreshOrQueue call.
func (c *Client) refreshFailed(ctx context.Context, err error) {
	var refreshErr *auth.RefreshError
	isRefreshErr := errors.As(err, &refreshErr) || errors.As(trace.Unwrap(err), &refreshErr)
	switch {
	case isRefreshErr && refreshErr.Queued:
		// The driver of the cycle already told the user.
	case isRefreshErr && trace.IsLimitExceeded(refreshErr.Err):
		c.notify(ctx, TooManyRefreshMessage, notify.TypeWarning)
	case isRefreshErr || errors.Is(trace.Unwrap(err), auth.ErrNoRefreshToken) || errors.Is(err, auth.ErrNoRefreshToken):
		c.notify(ctx, SessionExpiredMessage, notify.TypeError)
	case lib.IsCanceled(err):
	case trace.IsLimitExceeded(err):
		c.notify(ctx, TimeoutMessage, notify.TypeError)
	default:
		c.notify(ctx, Message(err), notify.TypeError)
	}
}

func (c *Client) notify(ctx context.Context, message string, typ notify.Type) {
	c.cfg.Metrics.Notification(string(typ))
	c.cfg.Notifier.Emit(ctx, notify.Notification{Message: message, Type: typ})
}
