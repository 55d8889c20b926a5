// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/forgepkg/forge/internal/config"
)

// setupLogging installs a charm logger as the slog default handler. The
// verbose flag lowers the configured level to debug.
func setupLogging(w io.Writer, level config.LogLevel, verbose bool) {
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  lvl,
	})
	slog.SetDefault(slog.New(logger))
}
