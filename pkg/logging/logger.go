// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures the process-wide slog logger.
//
// The agent service logs JSON to stdout (machine-collected); the CLI logs
// text to stderr. Both are slog handlers selected by Setup.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default slog logger for the process.
//
// # Description
//
// Reads LOG_LEVEL (debug|info|warn|error, default info) and LOG_FORMAT
// (json|text, default json) from the environment, builds the matching
// handler, and installs it via slog.SetDefault.
//
// # Outputs
//
//   - *slog.Logger: The installed logger, for callers that want to derive
//     component loggers with With().
func Setup() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
