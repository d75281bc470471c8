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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RefreshCycle(RefreshSuccess)
	m.RefreshCycle(RefreshSuccess)
	m.RefreshWait()
	m.Failure("unauthorized")
	m.Notification("error")

	require.Equal(t, 2.0, testutil.ToFloat64(m.RefreshCycles.WithLabelValues(RefreshSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RefreshWaits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("unauthorized")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("error")))

	_, err = New(reg)
	require.Error(t, err, "registering twice must fail")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RefreshCycle(RefreshFailure)
		m.RefreshWait()
		m.Failure("other")
		m.Notification("warning")
	})
}
