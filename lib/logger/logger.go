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

package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Config configures the process-wide logger.
type Config struct {
	Output   string `toml:"output"`
	Severity string `toml:"severity"`
	Format   string `toml:"format"`
}

type contextKey struct{}

// Init sets up the logger for a typical CLI scenario until configuration
// is parsed.
func Init() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
}

// Setup applies the configuration to the standard logger.
func Setup(conf Config) error {
	switch strings.ToLower(conf.Output) {
	case "", "stderr", "error", "2":
		log.SetOutput(os.Stderr)
	case "stdout", "out", "1":
		log.SetOutput(os.Stdout)
	case "discard", "none":
		log.SetOutput(io.Discard)
	default:
		// assume it's a file path:
		logFile, err := os.OpenFile(conf.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return trace.Wrap(err, "failed to create the log file")
		}
		log.SetOutput(logFile)
	}

	switch strings.ToLower(conf.Format) {
	case "", "text":
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return trace.BadParameter("unsupported log format %q", conf.Format)
	}

	if conf.Severity == "" {
		return nil
	}
	level, err := log.ParseLevel(conf.Severity)
	if err != nil {
		return trace.BadParameter("unsupported logger severity: %q", conf.Severity)
	}
	log.SetLevel(level)
	return nil
}

// Standard returns the package-level logger as a field logger.
func Standard() log.FieldLogger {
	return log.StandardLogger()
}

// Get returns the logger stored in the context or the standard one.
func Get(ctx context.Context) log.FieldLogger {
	if logger, ok := ctx.Value(contextKey{}).(log.FieldLogger); ok && logger != nil {
		return logger
	}
	return Standard()
}

// With stores a logger with an extra field in the context.
func With(ctx context.Context, key string, value interface{}) (context.Context, log.FieldLogger) {
	logger := Get(ctx).WithField(key, value)
	return WithLogger(ctx, logger), logger
}

// WithFields stores a logger with extra fields in the context.
func WithFields(ctx context.Context, fields log.Fields) (context.Context, log.FieldLogger) {
	logger := Get(ctx).WithFields(fields)
	return WithLogger(ctx, logger), logger
}

// WithLogger stores a given logger in the context.
func WithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}
