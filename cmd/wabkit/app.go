// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/internal/config"
	"github.com/wabkit/wabkit/internal/issue"
	"github.com/wabkit/wabkit/internal/metrics"
	"github.com/wabkit/wabkit/internal/repository"
	"github.com/wabkit/wabkit/pkg/module"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every command handler receives an App and reads
	// configuration, file system and output streams through it.
	App struct {
		Config ConfigProvider
		Fs     afero.Fs
		stdout io.Writer
		stderr io.Writer

		// Per-invocation state, set from flags and by prepare.
		verbose     bool
		cfgFile     string
		metricsFile string
		cfg         *config.Config
		collector   *metrics.PrometheusCollector
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Fs     afero.Fs
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		Fs:     deps.Fs,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Fs == nil {
		app.Fs = afero.NewOsFs()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// prepare loads the configuration and sets up metrics for one invocation.
func (a *App) prepare(ctx context.Context) error {
	opts := config.LoadOptions{ConfigFilePath: a.cfgFile, Fs: a.Fs}
	cfg, err := a.Config.Load(ctx, opts)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.metricsFile != "" {
		a.collector = metrics.NewPrometheusCollector(cfg.Metrics.Namespace)
	}
	return nil
}

// finish writes collected metrics, if requested.
func (a *App) finish() error {
	if a.metricsFile == "" || a.collector == nil {
		return nil
	}
	return a.collector.WriteTextfile(a.metricsFile)
}

// ensureCollector returns the invocation's collector, creating one when
// --metrics-file did not.
func (a *App) ensureCollector() *metrics.PrometheusCollector {
	if a.collector == nil {
		a.collector = metrics.NewPrometheusCollector(a.settings().Metrics.Namespace)
	}
	return a.collector
}

// settings returns the loaded configuration, or the defaults before prepare.
func (a *App) settings() *config.Config {
	if a.cfg == nil {
		return config.DefaultConfig()
	}
	return a.cfg
}

// recorder returns the collector components report to.
func (a *App) recorder() metrics.Collector {
	if a.collector == nil {
		return metrics.Noop
	}
	return a.collector
}

// logger returns a logger for one component, writing to stderr at the
// configured level.
func (a *App) logger(prefix string) *log.Logger {
	level := log.InfoLevel
	if parsed, err := log.ParseLevel(string(a.settings().LogLevel)); err == nil {
		level = parsed
	}
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: prefix, Level: level})
}

// loadRepository loads the module repository in dir, or in the configured
// repository directory when dir is empty.
func (a *App) loadRepository(dir string) (*repository.Repository, error) {
	if dir == "" {
		dir = a.settings().Repository.Dir
	}
	repo, err := repository.Load(a.Fs, dir, repository.WithLogger(a.logger("repository")))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load module repository").
			WithResource(dir).
			WithIssue(issue.RepositoryNotFoundId).
			WithSuggestion("Pass the module directory with --repo").
			Wrap(err).
			BuildError()
	}
	return repo, nil
}

// lookupModule finds name in repo.
func (a *App) lookupModule(repo *repository.Repository, name string) (module.Module, error) {
	m, ok := repo.Lookup(name)
	if !ok {
		return module.Module{}, issue.NewErrorContext().
			WithOperation("find module").
			WithResource(name).
			WithIssue(issue.ModuleNotFoundId).
			WithSuggestion("Run 'wabkit modules --repo " + repo.Dir() + "' to list the loaded modules").
			Wrap(repository.ErrUnknownModule).
			BuildError()
	}
	return m, nil
}

// reportError prints the suggestions of an actionable error and, in verbose
// mode, the full error chain and the rendered guidance of its linked issue.
func (a *App) reportError(err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || (!a.verbose && !ae.HasSuggestions()) {
		return
	}
	_, _ = fmt.Fprintln(a.stderr, formatErrorForDisplay(err, a.verbose))
	if !a.verbose {
		return
	}
	if guide := issue.Get(ae.Issue); guide != nil {
		if rendered, renderErr := guide.Render("dark"); renderErr == nil {
			_, _ = io.WriteString(a.stderr, rendered)
		}
	}
}
