// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wabkit/wabkit/internal/config"
	"github.com/wabkit/wabkit/internal/depgraph"
	"github.com/wabkit/wabkit/internal/extender"
	"github.com/wabkit/wabkit/internal/host"
	"github.com/wabkit/wabkit/internal/jarscan"
	"github.com/wabkit/wabkit/internal/locator"
	"github.com/wabkit/wabkit/internal/repository"
	"github.com/wabkit/wabkit/internal/watch"
	"github.com/wabkit/wabkit/pkg/jarurl"
	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/module"
)

const (
	metricsPath     = "/-/metrics"
	descriptorsPath = "/-/descriptors"
	shutdownTimeout = 10 * time.Second
)

type serveOptions struct {
	repoDir  string
	addr     string
	watch    bool
	debounce time.Duration
}

func newServeCommand(app *App) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web modules of a repository over HTTP",
		Long: `Serve the web modules of a repository over HTTP.

Every module with a Web-ContextPath header is deployed under its context
path; its static content is served, except for WEB-INF and META-INF.
With --watch (the default) modules are redeployed when their file in the
repository directory changes, started when added and stopped when removed.
Each module and its dependencies are scanned for tag library descriptors when
it is deployed; scan.skip in the configuration leaves modules out. The
descriptors found are listed at ` + descriptorsPath + `.
Metrics are exposed at ` + metricsPath + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.settings().Serve
			if !cmd.Flags().Changed("addr") {
				opts.addr = cfg.Addr
			}
			if !cmd.Flags().Changed("watch") {
				opts.watch = cfg.Watch
			}
			return runServe(cmd.Context(), app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.repoDir, "repo", "", "module directory (default from repository.dir)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from serve.addr)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "redeploy modules when the repository changes (default from serve.watch)")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "quiet period before reacting to repository changes")

	return cmd
}

// deployment holds the state shared by the HTTP host and the repository
// watcher. The repository is swapped on every reload.
type deployment struct {
	app    *App
	dir    string
	repo   atomic.Pointer[repository.Repository]
	bridge *extender.Bridge
	host   *host.Host
}

func runServe(ctx context.Context, app *App, opts serveOptions) error {
	repo, err := app.loadRepository(opts.repoDir)
	if err != nil {
		return err
	}
	collector := app.ensureCollector()

	d := &deployment{app: app, dir: repo.Dir()}
	d.repo.Store(repo)
	resolver := locator.FileResolverFunc(func(m module.Module) (string, bool) {
		return d.repo.Load().Resolve(m)
	})
	loc := locator.New(resolver, app.Fs)
	opener := jarurl.NewOpener(app.Fs)
	scanOpts := []jarscan.Option{
		jarscan.WithLogger(app.logger("jarscan")),
		jarscan.WithMetrics(collector),
	}
	scanner := jarscan.Chain{
		jarscan.NewLibraryScanner(loc, app.Fs, opener, scanOpts...),
		jarscan.NewWalker(
			depgraph.NewResolver(depgraph.DependencyLookupFunc(func(m module.Module) ([]module.Module, error) {
				return d.repo.Load().DirectDependencies(m)
			}), depgraph.WithLogger(app.logger("depgraph")), depgraph.WithMetrics(collector)),
			loc, opener, scanOpts...,
		),
	}
	d.host = host.New(loc, app.Fs, opener,
		host.WithLogger(app.logger("host")),
		host.WithScanner(scanner, jarscan.TLDSuffix, jarscan.NewSkipSet(app.settings().Scan.Skip...)),
	)
	owner := module.New(config.AppName, manifest.NewHeaders(
		manifest.BundleSymbolicName, config.AppName,
		manifest.BundleVersion, Version,
	))
	d.bridge = extender.NewBridge(d.host, owner,
		extender.WithLogger(app.logger("extender")),
		extender.WithMetrics(collector),
	)
	defer d.bridge.Close()

	deployed := d.bridge.Open(repo.Modules())

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc(descriptorsPath, d.serveDescriptors)
	mux.Handle("/", d.host)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	fmt.Fprintln(app.stderr, SuccessStyle.Render(fmt.Sprintf("serving %d web modules on http://%s", deployed, ln.Addr())))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 2)
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if opts.watch {
		w, err := watch.New(watch.Config{
			Dir:      d.dir,
			Debounce: opts.debounce,
			Logger:   app.logger("watch"),
			OnChange: d.reload,
		})
		if err != nil {
			_ = srv.Close()
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = fmt.Errorf("failed to shut down: %w", shutdownErr)
	}
	return err
}

// serveDescriptors lists the descriptors of every served module as JSON.
func (d *deployment) serveDescriptors(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.host.Descriptors()); err != nil {
		d.app.logger("serve").Warn("failed to write descriptors", "error", err)
	}
}

// reload rereads the repository and redeploys the modules whose file changed.
func (d *deployment) reload(_ context.Context, changed []string) error {
	repo, err := repository.Load(d.app.Fs, d.dir, repository.WithLogger(d.app.logger("repository")))
	if err != nil {
		return err
	}
	names := watch.Modules(changed)
	d.repo.Store(repo)

	res := host.Reconcile(d.bridge, repo.Modules(), func(m module.Module) bool {
		p, ok := repo.Resolve(m)
		return ok && slices.Contains(names, filepath.Base(p))
	})
	for _, err := range res.Errors {
		d.app.logger("serve").Error("failed to deploy web module", "error", err)
	}
	d.app.logger("serve").Info("repository changed", "modules", names,
		"stopped", res.Stopped, "started", res.Started, "failed", len(res.Errors))
	return nil
}
