/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lib

import (
	"context"
	"net"
	"net/url"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsDeadline(t *testing.T) {
	require.True(t, IsDeadline(trace.Wrap(context.DeadlineExceeded)))
	require.True(t, IsDeadline(&url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}))
	require.False(t, IsDeadline(trace.Errorf("boom")))
	require.False(t, IsDeadline(nil))
}

func TestIsConnectivity(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: trace.Errorf("connection refused")}
	require.True(t, IsConnectivity(&url.Error{Op: "Post", URL: "http://x", Err: dialErr}))
	require.True(t, IsConnectivity(trace.ConnectionProblem(nil, "unreachable")))
	require.False(t, IsConnectivity(trace.BadParameter("nope")))
	require.False(t, IsConnectivity(nil))
}

func TestIsCanceled(t *testing.T) {
	require.True(t, IsCanceled(trace.Wrap(context.Canceled)))
	require.False(t, IsCanceled(context.DeadlineExceeded))
}
