// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil bridges oops errors into structured logs and test assertions.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, errorAttrs(err, attrs)...)
}

// LogWarn is LogError at WARN level, for failures the caller recovers from.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.WarnContext(ctx, msg, errorAttrs(err, attrs)...)
}

// LogErrorContext is LogError with a context so trace ids reach the record.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.ErrorContext(ctx, msg, errorAttrs(err, attrs)...)
}

func errorAttrs(err error, extra []any) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return append(extra, "error", err)
	}
	attrs := append(extra, "error", oopsErr.Error())
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
