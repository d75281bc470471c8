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
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gravitational/trace"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"github.com/pbis/authclient/auth"
	"github.com/pbis/authclient/auth/state"
	"github.com/pbis/authclient/lib"
	"github.com/pbis/authclient/lib/logger"
	"github.com/pbis/authclient/lib/metrics"
)

const (
	appName = "authctl"
	// statusTimeFormat is used for token expiry in the status table
	statusTimeFormat = time.RFC3339
)

var (
	// Version is set at build time
	Version = "0.1.0"
	// Gitref is set at build time
	Gitref = ""
)

// Run prints the version
func (cmd *VersionCmd) Run(cli *CLI) error {
	lib.PrintVersion(cli.out, appName, Version, Gitref)
	return nil
}

// Run logs in with the username and password and stores the token pair
func (cmd *LoginCmd) Run(cli *CLI) error {
	ctx := cli.context()

	if cmd.Username == "" {
		username, err := (&promptui.Prompt{Label: "Username"}).Run()
		if err != nil {
			return trace.Wrap(err)
		}
		cmd.Username = username
	}
	if cmd.Password == "" {
		password, err := (&promptui.Prompt{Label: "Password", Mask: '*'}).Run()
		if err != nil {
			return trace.Wrap(err)
		}
		cmd.Password = password
	}

	s, err := cli.newSession(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer s.Close(ctx)

	creds, err := s.oauth.Login(ctx, cmd.Username, cmd.Password)
	if err != nil {
		return trace.Wrap(err, "login failed")
	}
	if err := state.PutCredentials(ctx, s.store, *creds); err != nil {
		return trace.Wrap(err)
	}
	fmt.Fprintf(cli.out, "Logged in as %v\n", cmd.Username)
	return nil
}

// Run clears the stored token pair
func (cmd *LogoutCmd) Run(cli *CLI) error {
	ctx := cli.context()
	s, err := cli.newSession(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer s.Close(ctx)

	s.client.Logout(ctx)
	fmt.Fprintln(cli.out, "Logged out")
	return nil
}

// Run prints the stored credentials without revealing them
func (cmd *StatusCmd) Run(cli *CLI) error {
	ctx := cli.context()
	s, err := cli.newSession(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer s.Close(ctx)

	creds, err := state.GetCredentials(ctx, s.store)
	if err != nil {
		return trace.Wrap(err)
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Credential", "Present", "Expires"})
	table.Append(statusRow(state.AccessTokenKey, creds.AccessToken))
	table.Append(statusRow(state.RefreshTokenKey, creds.RefreshToken))
	table.Render()
	return nil
}

func statusRow(name, token string) []string {
	present := strconv.FormatBool(token != "")
	expires := "-"
	if exp, ok := auth.ExpiresAt(token); ok {
		expires = exp.UTC().Format(statusTimeFormat)
	}
	return []string{name, present, expires}
}

// Run sends an authenticated GET and prints the response body
func (cmd *GetCmd) Run(cli *CLI) error {
	ctx := cli.context()
	s, err := cli.newSession(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer s.Close(ctx)

	resp, err := s.client.Get(ctx, cmd.Path, nil)
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Fprintln(cli.out, resp.String())
	return nil
}

// Run sends Parallel concurrent GETs and reports how the refreshes went
func (cmd *ProbeCmd) Run(cli *CLI) error {
	ctx := cli.context()
	s, err := cli.newSession(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	defer s.Close(ctx)

	parallel := cmd.Parallel
	if parallel == 0 {
		parallel = 1
	}

	var succeeded atomic.Int32
	var group errgroup.Group
	for i := 0; i < parallel; i++ {
		i := i
		group.Go(func() error {
			ctx, log := logger.With(ctx, "probe", i)
			resp, err := s.client.Get(ctx, cmd.Path, nil)
			if err != nil {
				log.WithError(err).Debug("Probe request failed")
				return nil
			}
			if resp.StatusCode() == http.StatusOK {
				succeeded.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return trace.Wrap(err)
	}

	const refreshCycles = "authclient_refresh_cycles_total"
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Measure", "Value"})
	table.AppendBulk([][]string{
		{"requests", strconv.Itoa(parallel)},
		{"succeeded", strconv.Itoa(int(succeeded.Load()))},
		{"refreshes succeeded", formatCount(s.counterValue(refreshCycles, "result", metrics.RefreshSuccess))},
		{"refreshes failed", formatCount(s.counterValue(refreshCycles, "result", metrics.RefreshFailure))},
		{"queued behind a refresh", formatCount(s.counterValue("authclient_refresh_waiters_total", "", ""))},
		{"notifications", formatCount(s.counterValue("authclient_notifications_total", "", ""))},
	})
	table.Render()

	if int(succeeded.Load()) != parallel {
		return trace.Errorf("%d of %d probe requests failed", parallel-int(succeeded.Load()), parallel)
	}
	return nil
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}
