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
	"github.com/gravitational/trace"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authclient"

// Refresh cycle outcomes.
const (
	RefreshSuccess        = "success"
	RefreshFailure        = "failure"
	RefreshNoRefreshToken = "no_refresh_token"
	RefreshRateLimited    = "rate_limited"
	RefreshWaitTimeout    = "wait_timeout"
)

// Metrics holds the client counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RefreshCycles *prometheus.CounterVec
	RefreshWaits  prometheus.Counter
	Failures      *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// New creates the counters and registers them on the registerer when it is not nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Token refresh cycles by outcome.",
		}, []string{"result"}),
		RefreshWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_waiters_total",
			Help:      "Requests queued behind an in-flight token refresh.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed requests by classification.",
		}, []string{"kind"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "User-facing notifications by type.",
		}, []string{"type"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.RefreshCycles, m.RefreshWaits, m.Failures, m.Notifications} {
		if err := reg.Register(c); err != nil {
			return nil, trace.Wrap(err)
		}
	}
	return m, nil
}

// RefreshCycle records a refresh cycle outcome.
func (m *Metrics) RefreshCycle(result string) {
	if m == nil {
		return
	}
	m.RefreshCycles.WithLabelValues(result).Inc()
}

// RefreshWait records a request queued behind an in-flight refresh.
func (m *Metrics) RefreshWait() {
	if m == nil {
		return
	}
	m.RefreshWaits.Inc()
}

// Failure records a classified request failure.
func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

// Notification records an emitted notification.
func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind).Inc()
}
