package testing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pbis/authclient/lib/logger"
)

const defaultTimeout = 5 * time.Second

// Suite is the base for test suites talking to a fake backend.
type Suite struct {
	suite.Suite
	ctx context.Context
}

// SetContext sets a per-test context carrying a logger tagged with the test name.
func (s *Suite) SetContext(timeout time.Duration) context.Context {
	t := s.T()
	t.Helper()

	require.Nil(t, s.ctx, "Context cannot be set twice")

	ctx, _ := logger.With(context.Background(), "test", t.Name())
	ctx, cancel := context.WithTimeout(ctx, timeout)
	t.Cleanup(func() {
		cancel()
		s.ctx = nil
	})
	s.ctx = ctx
	return ctx
}

// Ctx returns the per-test context, creating it on first use.
func (s *Suite) Ctx() context.Context {
	t := s.T()
	t.Helper()

	if ctx := s.ctx; ctx != nil {
		return ctx
	}
	return s.SetContext(defaultTimeout)
}

// StartBackend serves handler until the current test, or the suite when
// called from SetupSuite, finishes.
func (s *Suite) StartBackend(handler http.Handler) *httptest.Server {
	t := s.T()
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}
