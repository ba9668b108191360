// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"log/slog"
	"slices"

	ethlog "github.com/ethereum/go-ethereum/log"
)

// Logger writes key/value pairs to a slog handler.
type Logger = ethlog.Logger

const (
	LevelTrace = ethlog.LevelTrace
	LevelDebug = ethlog.LevelDebug
	LevelInfo  = ethlog.LevelInfo
	LevelWarn  = ethlog.LevelWarn
	LevelError = ethlog.LevelError
	LevelCrit  = ethlog.LevelCrit
)

// Root returns the root logger.
func Root() Logger {
	return ethlog.Root()
}

// SetDefault replaces the root logger.
func SetDefault(l Logger) {
	ethlog.SetDefault(l)
}

// NewLogger returns a logger with the specified handler set.
func NewLogger(h slog.Handler) Logger {
	return ethlog.NewLogger(h)
}

// DiscardHandler returns a no-op handler.
func DiscardHandler() slog.Handler {
	return ethlog.DiscardHandler()
}

// LevelFromVerbosity maps the legacy 0 (crit) .. 5 (trace) verbosity scale to a slog level.
func LevelFromVerbosity(verbosity int) slog.Level {
	return ethlog.FromLegacyLevel(verbosity)
}

// WithContext returns a logger carrying the given key/value pairs.
// Records are forwarded to whatever root logger is installed when they are written,
// so package level loggers honor a later SetDefault.
func WithContext(ctx ...any) Logger {
	return ethlog.NewLogger(&rootHandler{}).With(ctx...)
}

type rootHandler struct {
	attrs []slog.Attr
}

func (h *rootHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return ethlog.Root().Handler().Enabled(ctx, level)
}

func (h *rootHandler) Handle(ctx context.Context, r slog.Record) error {
	target := ethlog.Root().Handler()
	if len(h.attrs) > 0 {
		target = target.WithAttrs(h.attrs)
	}
	return target.Handle(ctx, r)
}

func (h *rootHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &rootHandler{attrs: append(slices.Clone(h.attrs), attrs...)}
}

func (h *rootHandler) WithGroup(string) slog.Handler {
	return h
}
