package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shipline/shipline/internal/config"
	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
	model    *config.Model
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, a populated step
// registry, and the loaded pipeline model. Startup failures (an unreadable
// or invalid definition, a step with no registered handler) are programmer
// or operator errors and panic; the entrypoint recovers them into a clean
// exit.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline definition: %w", err))
	}
	logger.Debug("Pipeline definition loaded into unified model.", "pipeline", model.Pipeline.Name)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All step modules registered.", "count", len(modules), "types", reg.Types())

	if err := validateSteps(model, reg); err != nil {
		panic(err)
	}
	logger.Debug("Pipeline validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   appConfig,
		model:    model,
	}
}

// validateSteps confirms every step in the pipeline has a compiled handler,
// so a typo fails at startup instead of mid-release.
func validateSteps(model *config.Model, reg *registry.Registry) error {
	for _, step := range model.Pipeline.Steps {
		if _, ok := reg.Lookup(step.Type); !ok {
			return fmt.Errorf("pipeline %q references unknown step type %q (step %q)",
				model.Pipeline.Name, step.Type, step.Name)
		}
	}
	return nil
}

// Pipeline returns the loaded pipeline model. This is primarily for testing.
func (a *App) Pipeline() *config.Pipeline {
	return a.model.Pipeline
}
