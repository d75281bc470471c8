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
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/pbis/authclient/lib"
	"github.com/pbis/authclient/lib/logger"
)

const (
	// appDescription is shown in the help output
	appDescription = "Authenticated HTTP client for the backend API"
)

var cli CLI

func main() {
	logger.Init()
	ctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Configuration(KongTOMLResolver),
		kong.Name(appName),
		kong.Description(appDescription),
	)

	if cli.Debug {
		if err := logger.Setup(logger.Config{Severity: "debug"}); err != nil {
			lib.Bail(err)
		}
	}
	if err := cli.Validate(); err != nil {
		lib.Bail(err)
	}

	sigCtx, cancel := lib.ServeSignals(context.Background())
	defer cancel()
	cli.ctx = sigCtx

	// See respective commands Run() methods
	err := ctx.Run(&cli)
	if err != nil && cli.Debug {
		fmt.Printf("%v\n", trace.DebugReport(err))
	}
	if err != nil {
		lib.Bail(err)
	}
}
