// SPDX-License-Identifier: MPL-2.0

package depgraph

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/wabkit/wabkit/internal/metrics"
	"github.com/wabkit/wabkit/pkg/module"
)

type (
	// DependencyLookup returns the modules a module directly depends on.
	DependencyLookup interface {
		DirectDependencies(m module.Module) ([]module.Module, error)
	}

	// DependencyLookupFunc adapts a function to DependencyLookup.
	DependencyLookupFunc func(m module.Module) ([]module.Module, error)

	// Resolver computes transitive dependency closures. It holds no state
	// of its own and is safe for concurrent use if its lookup is.
	Resolver struct {
		lookup  DependencyLookup
		logger  *log.Logger
		metrics metrics.Collector
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// Closure is the result of one resolve call.
	Closure struct {
		// Root is the module the walk started from.
		Root module.Module
		// Modules are the transitive dependencies in discovery order,
		// never including Root.
		Modules []module.Module
		// Graph holds every edge seen during the walk, keyed by module.Key.
		Graph *Graph
		// Failed lists the keys of modules whose lookup failed.
		Failed []string

		byKey map[string]module.Module
	}
)

// DirectDependencies implements DependencyLookup.
func (f DependencyLookupFunc) DirectDependencies(m module.Module) ([]module.Module, error) {
	return f(m)
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(r *Resolver) {
		r.metrics = c
	}
}

// NewResolver creates a Resolver backed by lookup.
func NewResolver(lookup DependencyLookup, opts ...Option) *Resolver {
	r := &Resolver{lookup: lookup, metrics: metrics.Noop}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "resolver"})
	}
	return r
}

// Dependencies returns the transitive dependencies of root, excluding root
// itself even when a cycle leads back to it.
func (r *Resolver) Dependencies(root module.Module) []module.Module {
	return r.Resolve(root).Modules
}

// Resolve walks the dependencies of root breadth first. Each module is
// looked up at most once; a failed lookup is logged and the module is
// treated as having no dependencies.
func (r *Resolver) Resolve(root module.Module) *Closure {
	c := &Closure{
		Root:  root,
		Graph: NewGraph(),
		byKey: map[string]module.Module{root.Key(): root},
	}
	c.Graph.AddNode(root.Key())

	visited := map[string]bool{root.Key(): true}
	queue := []module.Module{root}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]

		deps, err := r.lookup.DirectDependencies(m)
		if err != nil {
			r.logger.Warn("failed to look up dependencies", "module", m.Key(), "error", err)
			c.Failed = append(c.Failed, m.Key())
			continue
		}
		for _, d := range deps {
			key := d.Key()
			c.Graph.AddEdge(m.Key(), key)
			if visited[key] {
				continue
			}
			visited[key] = true
			c.byKey[key] = d
			c.Modules = append(c.Modules, d)
			queue = append(queue, d)
		}
	}

	r.metrics.DependenciesResolved(len(c.Modules))
	r.logger.Debug("resolved dependencies", "module", root.Key(), "count", len(c.Modules))
	return c
}

// Module returns the module with the given key, if it was seen.
func (c *Closure) Module(key string) (module.Module, bool) {
	m, ok := c.byKey[key]
	return m, ok
}

// Order returns the dependencies so that each comes after everything it
// depends on. It fails with a CycleError when the dependencies form a
// cycle.
func (c *Closure) Order() ([]module.Module, error) {
	keys, err := c.Graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	rootKey := c.Root.Key()
	out := make([]module.Module, 0, len(c.Modules))
	for _, k := range keys {
		if k == rootKey {
			continue
		}
		out = append(out, c.byKey[k])
	}
	return out, nil
}

// Walk visits the dependency tree below Root depth first, following the
// edges in the order they were discovered. Root itself is not visited. A
// module already visited is reported again with repeated set and its
// dependencies are not expanded, so cycles terminate.
func (c *Closure) Walk(visit func(m module.Module, depth int, repeated bool)) {
	seen := map[string]bool{c.Root.Key(): true}
	var walk func(key string, depth int)
	walk = func(key string, depth int) {
		for _, dep := range c.Graph.Edges(key) {
			m := c.byKey[dep]
			if seen[dep] {
				visit(m, depth, true)
				continue
			}
			seen[dep] = true
			visit(m, depth, false)
			walk(dep, depth+1)
		}
	}
	walk(c.Root.Key(), 1)
}
