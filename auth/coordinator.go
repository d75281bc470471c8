package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	limiter "github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"

	"github.com/pbis/authclient/auth/oauth"
	"github.com/pbis/authclient/auth/state"
	"github.com/pbis/authclient/lib/logger"
	"github.com/pbis/authclient/lib/metrics"
)

const (
	// DefaultRefreshTimeout bounds a single refresh endpoint call.
	DefaultRefreshTimeout = 15 * time.Second
	// DefaultWaitTimeout bounds how long a queued caller waits for the
	// in-flight refresh to settle.
	DefaultWaitTimeout = 30 * time.Second

	rateLimitKey = "refresh"
)

// ErrNoRefreshToken is returned without any network call when the store has
// no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

// RefreshError is returned to every caller of a failed refresh cycle. The
// driver gets Queued == false, callers that waited on it get Queued == true;
// all of them unwrap to the same cause.
type RefreshError struct {
	Err    error
	Queued bool
}

func (e *RefreshError) Error() string {
	return "token refresh failed: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// RefreshState is the state of the single-flight refresh machine.
type RefreshState int

const (
	StateIdle RefreshState = iota
	StateRefreshing
)

func (s RefreshState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Callbacks are the application hooks the coordinator drives.
type Callbacks struct {
	// Refresh performs the refresh endpoint call.
	Refresh oauth.Refresher
	// Logout clears the application-level session.
	Logout func(ctx context.Context)
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Store     state.Store
	Callbacks Callbacks

	// Clock measures the queued callers' wait timeout.
	Clock clockwork.Clock
	// RefreshTimeout bounds the refresh endpoint call.
	RefreshTimeout time.Duration
	// WaitTimeout bounds how long a queued caller waits.
	WaitTimeout time.Duration

	// RefreshRateLimit caps refresh cycles per RefreshRateInterval. Zero disables it.
	RefreshRateLimit    uint64
	RefreshRateInterval time.Duration

	Metrics *metrics.Metrics
}

// CheckAndSetDefaults validates the config and fills in the defaults.
func (c *CoordinatorConfig) CheckAndSetDefaults() error {
	if c.Store == nil {
		return trace.BadParameter("missing credential store")
	}
	if c.Callbacks.Refresh == nil {
		return trace.BadParameter("missing refresh callback")
	}
	if c.Callbacks.Logout == nil {
		return trace.BadParameter("missing logout callback")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = DefaultRefreshTimeout
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.RefreshRateLimit > 0 && c.RefreshRateInterval <= 0 {
		c.RefreshRateInterval = time.Minute
	}
	return nil
}

type flightResult struct {
	token string
	err   error
}

// Coordinator makes sure at most one refresh call is outstanding and hands
// its outcome to every caller that hit an expired token meanwhile.
type Coordinator struct {
	cfg     CoordinatorConfig
	limiter limiter.Store

	mu    sync.Mutex // protects the below fields
	state RefreshState
	queue []chan flightResult
}

// NewCoordinator returns an idle coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	c := &Coordinator{cfg: cfg}
	if cfg.RefreshRateLimit > 0 {
		store, err := memorystore.New(&memorystore.Config{
			Tokens:   cfg.RefreshRateLimit,
			Interval: cfg.RefreshRateInterval,
		})
		if err != nil {
			return nil, trace.Wrap(err)
		}
		c.limiter = store
	}
	return c, nil
}

// Close releases the rate limiter.
func (c *Coordinator) Close(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return trace.Wrap(c.limiter.Close(ctx))
}

// Store returns the credential store the coordinator writes to.
func (c *Coordinator) Store() state.Store {
	return c.cfg.Store
}

// State returns the current refresh state.
func (c *Coordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Waiting returns the number of callers queued behind the in-flight refresh.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// RefreshOrQueue returns a fresh access token. The first caller while idle
// drives the refresh; callers arriving while it is in flight wait for its
// outcome instead of starting another one. The refresh token is read only by
// the driver, after the machine left idle, so a cycle never starts with a
// token an earlier cycle already rotated.
func (c *Coordinator) RefreshOrQueue(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state == StateRefreshing {
		ch := make(chan flightResult, 1)
		c.queue = append(c.queue, ch)
		c.mu.Unlock()
		c.cfg.Metrics.RefreshWait()
		return c.wait(ctx, ch)
	}
	c.state = StateRefreshing
	c.mu.Unlock()

	refreshToken, err := c.cfg.Store.Get(ctx, state.RefreshTokenKey)
	if err != nil {
		logger.Get(ctx).WithError(err).Warn("Failed to read the refresh token, treating it as absent")
		refreshToken = ""
	}
	if refreshToken == "" {
		return c.noRefreshToken(ctx)
	}
	return c.drive(ctx, refreshToken)
}

// noRefreshToken ends a cycle that has nothing to refresh with: credentials
// are cleared, waiters fail silently and the logout callback runs once.
func (c *Coordinator) noRefreshToken(ctx context.Context) (string, error) {
	c.cfg.Metrics.RefreshCycle(metrics.RefreshNoRefreshToken)
	if err := state.ClearCredentials(ctx, c.cfg.Store); err != nil {
		logger.Get(ctx).WithError(err).Error("Failed to clear credentials")
	}
	c.drain(flightResult{err: &RefreshError{Err: ErrNoRefreshToken, Queued: true}})
	c.cfg.Callbacks.Logout(ctx)
	return "", trace.Wrap(ErrNoRefreshToken)
}

// ForceLogout clears both credentials and invokes the logout callback.
func (c *Coordinator) ForceLogout(ctx context.Context) {
	if err := state.ClearCredentials(ctx, c.cfg.Store); err != nil {
		logger.Get(ctx).WithError(err).Error("Failed to clear credentials")
	}
	c.cfg.Callbacks.Logout(ctx)
}

func (c *Coordinator) wait(ctx context.Context, ch <-chan flightResult) (string, error) {
	timer := c.cfg.Clock.NewTimer(c.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		return "", trace.Wrap(ctx.Err())
	case <-timer.Chan():
		c.cfg.Metrics.RefreshCycle(metrics.RefreshWaitTimeout)
		return "", trace.LimitExceeded("gave up after %v waiting for the token refresh", c.cfg.WaitTimeout)
	}
}

func (c *Coordinator) drive(ctx context.Context, refreshToken string) (string, error) {
	log := logger.Get(ctx)

	if c.limiter != nil {
		_, _, _, ok, err := c.limiter.Take(ctx, rateLimitKey)
		if err != nil {
			log.WithError(err).Warn("Refresh rate limiter failed, allowing the refresh")
		} else if !ok {
			c.cfg.Metrics.RefreshCycle(metrics.RefreshRateLimited)
			cause := trace.LimitExceeded("more than %d token refreshes in %v", c.cfg.RefreshRateLimit, c.cfg.RefreshRateInterval)
			c.drain(flightResult{err: &RefreshError{Err: cause, Queued: true}})
			return "", &RefreshError{Err: cause}
		}
	}

	log.Debug("Refreshing access token")
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RefreshTimeout)
	creds, err := c.cfg.Callbacks.Refresh.Refresh(rctx, refreshToken)
	cancel()
	if err == nil && (creds == nil || creds.AccessToken == "") {
		err = trace.BadParameter("refresh returned no access token")
	}
	if err != nil {
		log.WithError(err).Error("Token refresh failed, logging out")
		c.cfg.Metrics.RefreshCycle(metrics.RefreshFailure)

		// Credentials go before the state returns to idle so that a request
		// arriving right after cannot start a refresh with the dead token.
		if clearErr := state.ClearCredentials(ctx, c.cfg.Store); clearErr != nil {
			log.WithError(clearErr).Error("Failed to clear credentials")
		}
		c.drain(flightResult{err: &RefreshError{Err: err, Queued: true}})
		c.cfg.Callbacks.Logout(ctx)
		return "", &RefreshError{Err: err}
	}

	token := creds.AccessToken
	if err := state.PutCredentials(ctx, c.cfg.Store, *creds); err != nil {
		log.WithError(err).Error("Failed to store the refreshed credentials")
	}
	n := c.drain(flightResult{token: token})
	c.cfg.Metrics.RefreshCycle(metrics.RefreshSuccess)
	log.WithField("waiters", n).Debug("Access token refreshed")
	return token, nil
}

// drain returns the machine to idle and hands the result to every queued
// caller in arrival order.
func (c *Coordinator) drain(res flightResult) int {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.state = StateIdle
	c.mu.Unlock()

	for _, ch := range queue {
		ch <- res
	}
	return len(queue)
}
