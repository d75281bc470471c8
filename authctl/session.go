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

package main

import (
	"context"

	"github.com/gravitational/trace"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"

	"github.com/pbis/authclient/auth"
	"github.com/pbis/authclient/auth/oauth"
	"github.com/pbis/authclient/auth/state"
	"github.com/pbis/authclient/client"
	"github.com/pbis/authclient/lib/logger"
	"github.com/pbis/authclient/lib/metrics"
	"github.com/pbis/authclient/notify"
)

// session is the authenticated client stack built from the CLI flags.
type session struct {
	store       state.Store
	oauth       *oauth.HTTPClient
	coordinator *auth.Coordinator
	client      *client.Client
	registry    *prometheus.Registry
	metrics     *metrics.Metrics

	closers []func(context.Context) error
}

func (c *CLI) newSession(ctx context.Context) (*session, error) {
	s := &session{registry: prometheus.NewRegistry()}

	store, err := c.newStore(s)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	s.store = store

	s.metrics, err = metrics.New(s.registry)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	s.oauth, err = oauth.NewHTTPClient(c.BaseURL)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	coordConfig := c.coordinatorConfig()
	coordConfig.Store = store
	coordConfig.Metrics = s.metrics
	coordConfig.Callbacks = auth.Callbacks{
		Refresh: s.oauth,
		Logout: func(ctx context.Context) {
			logger.Get(ctx).Info("Session ended, run 'authctl login' to sign in again")
		},
	}
	s.coordinator, err = auth.NewCoordinator(coordConfig)
	if err != nil {
		s.Close(ctx)
		return nil, trace.Wrap(err)
	}
	s.closers = append(s.closers, s.coordinator.Close)

	clientConfig := c.clientConfig()
	clientConfig.Coordinator = s.coordinator
	clientConfig.Notifier = notify.LogEmitter{}
	clientConfig.Metrics = s.metrics
	s.client, err = client.New(clientConfig)
	if err != nil {
		s.Close(ctx)
		return nil, trace.Wrap(err)
	}
	return s, nil
}

func (c *CLI) newStore(s *session) (state.Store, error) {
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		s.closers = append(s.closers, func(context.Context) error { return rdb.Close() })
		store, err := state.NewRedisStore(rdb, c.RedisPrefix)
		return store, trace.Wrap(err)
	}
	store, err := state.NewDiskStore(c.Storage)
	return store, trace.Wrap(err)
}

// Close releases the session resources.
func (s *session) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Get(ctx).WithError(err).Warn("Failed to release session resources")
		}
	}
}

// counterValue sums the samples of a counter family, optionally filtered by a
// label value.
func (s *session) counterValue(name, label, value string) float64 {
	families, err := s.registry.Gather()
	if err != nil {
		return 0
	}
	var sum float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if label != "" && !hasLabel(m.GetLabel(), label, value) {
				continue
			}
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func hasLabel(pairs []*dto.LabelPair, name, value string) bool {
	for _, pair := range pairs {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}
