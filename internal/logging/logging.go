// Copyright (c) 2024 The FCx Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package logging wraps zap so every pipeline stage logs the same
// structured, key/value shaped way instead of reaching for fmt.Printf.
// The core never logs fatally; Fatal-severity problems are surfaced as
// *diag.Diagnostic return values instead.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	global *zap.SugaredLogger
)

// L returns the process-wide sugared logger, building it lazily on first use
// with a development-friendly console encoder.
func L() *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		logger, err := cfg.Build()
		if err != nil {
			// Logging must never be the reason the compiler can't run.
			logger = zap.NewNop()
		}
		global = logger.Sugar()
	})
	return global
}

// Stage returns a logger namespaced to a single pipeline stage, e.g.
// logging.Stage("preprocessor").Debugw("expanded macro", "name", name).
func Stage(name string) *zap.SugaredLogger {
	return L().With("stage", name)
}

// SetLevel swaps in a logger at the requested level (e.g. "debug", "warn").
// Used by the CLI's --verbose flag.
func SetLevel(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	global = logger.Sugar()
	return nil
}
