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
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/pbis/authclient/auth"
	"github.com/pbis/authclient/client"
	"github.com/pbis/authclient/lib"
)

// BackendConfig points the client at the backend
type BackendConfig struct {
	// BaseURL is the backend root URL
	BaseURL string `help:"Backend base URL" default:"http://localhost:8000" env:"AUTHCTL_BASE_URL" name:"base-url"`
}

// StorageConfig selects the credential store
type StorageConfig struct {
	// Storage is a diskv credential directory
	Storage string `help:"Credential storage directory" env:"AUTHCTL_STORAGE"`

	// RedisAddr switches the credential store to Redis when set
	RedisAddr string `help:"Redis address for shared credentials" env:"AUTHCTL_REDIS_ADDR" name:"redis-addr"`

	// RedisPrefix is the Redis key prefix
	RedisPrefix string `help:"Redis key prefix" default:"authclient" env:"AUTHCTL_REDIS_PREFIX" name:"redis-prefix"`
}

// RefreshConfig tunes requests and token refresh
type RefreshConfig struct {
	// Timeout bounds a single request attempt
	Timeout time.Duration `help:"Request timeout" default:"15s" env:"AUTHCTL_TIMEOUT"`

	// RefreshTimeout bounds the refresh endpoint call
	RefreshTimeout time.Duration `help:"Token refresh timeout" default:"15s" env:"AUTHCTL_REFRESH_TIMEOUT" name:"refresh-timeout"`

	// WaitTimeout bounds how long a request waits for another one's refresh
	WaitTimeout time.Duration `help:"Max wait for an in-flight token refresh" default:"30s" env:"AUTHCTL_WAIT_TIMEOUT" name:"wait-timeout"`

	// ProactiveRefreshSkew refreshes JWT access tokens this long before they expire
	ProactiveRefreshSkew time.Duration `help:"Refresh JWT access tokens expiring within this window before sending" env:"AUTHCTL_PROACTIVE_REFRESH_SKEW" name:"proactive-refresh-skew"`

	// RefreshRateLimit caps refresh cycles per interval, 0 disables it
	RefreshRateLimit int `help:"Max token refreshes per interval, 0 disables the limit" env:"AUTHCTL_REFRESH_RATE_LIMIT" name:"refresh-rate-limit"`

	// RefreshRateInterval is the rate limit window
	RefreshRateInterval time.Duration `help:"Token refresh rate limit window" default:"1m" env:"AUTHCTL_REFRESH_RATE_INTERVAL" name:"refresh-rate-interval"`
}

// LoginCmd holds CLI options for authctl login
type LoginCmd struct {
	// Username is prompted for when empty
	Username string `help:"Username, prompted for when omitted" short:"u" env:"AUTHCTL_USERNAME"`

	// Password is prompted for when empty
	Password string `help:"Password, prompted for when omitted" env:"AUTHCTL_PASSWORD"`
}

// LogoutCmd holds CLI options for authctl logout
type LogoutCmd struct{}

// StatusCmd holds CLI options for authctl status
type StatusCmd struct{}

// GetCmd holds CLI options for authctl get
type GetCmd struct {
	// Path is the backend path relative to the base URL
	Path string `arg:"true" help:"Backend path" required:"true"`
}

// ProbeCmd holds CLI options for authctl probe
type ProbeCmd struct {
	// Path is the backend path relative to the base URL
	Path string `arg:"true" help:"Backend path" required:"true"`

	// Parallel is the number of concurrent requests
	Parallel int `help:"Number of concurrent requests" default:"5" short:"n"`
}

// VersionCmd prints the version
type VersionCmd struct{}

// CLI represents command structure
type CLI struct {
	// Config is the path to configuration file
	Config kong.ConfigFlag `help:"Path to TOML configuration file" optional:"true" type:"existingfile" env:"AUTHCTL_CONFIG"`

	// Debug is a debug logging mode flag
	Debug bool `help:"Debug logging" short:"d" env:"AUTHCTL_DEBUG"`

	BackendConfig
	StorageConfig
	RefreshConfig

	Version VersionCmd `cmd:"true" help:"Print version"`
	Login   LoginCmd   `cmd:"true" help:"Log in and store the token pair"`
	Logout  LogoutCmd  `cmd:"true" help:"Forget the stored token pair"`
	Status  StatusCmd  `cmd:"true" help:"Show the stored credentials"`
	Get     GetCmd     `cmd:"true" help:"Send an authenticated GET request and print the response body"`
	Probe   ProbeCmd   `cmd:"true" help:"Send concurrent authenticated GET requests and report refresh activity"`

	// out receives command output
	out io.Writer `kong:"-"`
	// ctx is canceled on SIGINT/SIGTERM
	ctx context.Context `kong:"-"`
}

func (c *CLI) context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Validate checks the configuration and fills in derived values
func (c *CLI) Validate() error {
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.BaseURL == "" {
		return trace.BadParameter("base-url must be set")
	}
	baseURL, err := lib.NormalizeBaseURL(c.BaseURL)
	if err != nil {
		return trace.Wrap(err, "invalid base-url")
	}
	c.BaseURL = baseURL
	if c.RefreshRateLimit < 0 {
		return trace.BadParameter("refresh-rate-limit must not be negative")
	}
	if c.Probe.Parallel < 0 {
		return trace.BadParameter("parallel must not be negative")
	}
	if c.RedisAddr == "" && c.Storage == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return trace.Wrap(err, "failed to determine the default storage directory")
		}
		c.Storage = filepath.Join(home, ".authctl")
	}
	return nil
}

func (c *CLI) coordinatorConfig() auth.CoordinatorConfig {
	return auth.CoordinatorConfig{
		RefreshTimeout:      c.RefreshTimeout,
		WaitTimeout:         c.WaitTimeout,
		RefreshRateLimit:    uint64(c.RefreshRateLimit),
		RefreshRateInterval: c.RefreshRateInterval,
	}
}

func (c *CLI) clientConfig() client.Config {
	return client.Config{
		BaseURL:              c.BaseURL,
		Timeout:              c.Timeout,
		ProactiveRefreshSkew: c.ProactiveRefreshSkew,
	}
}
