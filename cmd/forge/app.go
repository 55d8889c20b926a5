// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/forgepkg/forge/internal/config"
	"github.com/forgepkg/forge/internal/engine"
)

type (
	// App wires CLI services and shared dependencies. Command handlers
	// receive an App and delegate to the engine it builds.
	App struct {
		Config config.Provider
		// EngineOptions are passed to every engine the App creates.
		EngineOptions []engine.Option

		stdout io.Writer
		stderr io.Writer

		verbose bool
		cfgFile string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config        config.Provider
		EngineOptions []engine.Option
		Stdout        io.Writer
		Stderr        io.Writer
	}
)

// NewApp returns an App using deps, with defaults for unset fields.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:        deps.Config,
		EngineOptions: deps.EngineOptions,
		stdout:        deps.Stdout,
		stderr:        deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.cfgFile}
}

// loadConfig loads the configuration selected by the global flags.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, a.loadOptions())
}

// fail renders err and returns the ExitError for it.
func (a *App) fail(err error) error {
	return renderError(a.stderr, err, a.verbose)
}
