// SPDX-License-Identifier: MPL-2.0

package extender

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/wabkit/wabkit/internal/metrics"
	"github.com/wabkit/wabkit/pkg/module"
)

var (
	// ErrStart is the sentinel error wrapped by StartError.
	ErrStart = errors.New("failed to start web application")
	// ErrInTransition is returned when a module is already being started or
	// stopped.
	ErrInTransition = errors.New("module is changing state")
)

type (
	// Application is a deployed web application.
	Application interface {
		Start() error
		Stop() error
	}

	// Container creates applications for web modules. owner is the module
	// of the bridge itself.
	Container interface {
		CreateApplication(m module.Module, owner module.Module) (Application, error)
	}

	// Halter is implemented by containers that release resources when the
	// bridge closes.
	Halter interface {
		Halt()
	}

	// StartError reports a web module whose application could not be
	// created or started. It wraps ErrStart for errors.Is() compatibility.
	StartError struct {
		Module string
		Err    error
	}

	// Bridge manages one application per started web module. It is safe for
	// concurrent use; the host is expected to deliver the notifications of
	// any single module in order.
	Bridge struct {
		container  Container
		owner      module.Module
		classifier module.Classifier
		logger     *log.Logger
		metrics    metrics.Collector

		mu      sync.Mutex
		entries map[string]*entry
		order   []string
	}

	// Option configures a Bridge.
	Option func(*Bridge)

	entry struct {
		module module.Module
		app    Application
		state  State
	}
)

// Error implements the error interface for StartError.
func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start web application for %s: %v", e.Module, e.Err)
}

// Unwrap returns ErrStart and the underlying cause.
func (e *StartError) Unwrap() []error { return []error{ErrStart, e.Err} }

// WithClassifier replaces the web module classifier.
func WithClassifier(c module.Classifier) Option {
	return func(b *Bridge) {
		b.classifier = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(b *Bridge) {
		b.metrics = c
	}
}

// NewBridge creates a Bridge that deploys web modules into container on
// behalf of owner.
func NewBridge(container Container, owner module.Module, opts ...Option) *Bridge {
	b := &Bridge{
		container:  container,
		owner:      owner,
		classifier: module.ContextPathClassifier,
		metrics:    metrics.Noop,
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "extender"})
	}
	return b
}

// ModuleStarting deploys m if it is a web module. Non-web modules yield a
// nil Application and no error. A module that is already managed returns
// its existing application. If the application cannot be created or
// started nothing is recorded and a *StartError is returned; an application
// that was created but failed to start is stopped first.
func (b *Bridge) ModuleStarting(m module.Module) (Application, error) {
	headers := m.Headers()
	if !b.classifier.IsWebModule(headers) {
		return nil, nil
	}
	key := m.Key()

	b.mu.Lock()
	if e, ok := b.entries[key]; ok {
		b.mu.Unlock()
		if e.state.IsTransitional() {
			return nil, fmt.Errorf("%w: %s is %s", ErrInTransition, key, e.state)
		}
		return e.app, nil
	}
	b.entries[key] = &entry{module: m, state: StateStarting}
	b.mu.Unlock()
	b.transition(StateUnmanaged, StateStarting)

	app, err := b.container.CreateApplication(m, b.owner)
	if err == nil {
		if err = app.Start(); err != nil {
			// The container may hold resources for an application that never
			// started.
			if stopErr := app.Stop(); stopErr != nil {
				b.logger.Warn("failed to release web application", "module", key, "error", stopErr)
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		delete(b.entries, key)
		b.transition(StateStarting, StateUnmanaged)
		b.metrics.LifecycleError("start")
		return nil, &StartError{Module: key, Err: err}
	}
	b.entries[key] = &entry{module: m, app: app, state: StateManaged}
	b.order = append(b.order, key)
	b.transition(StateStarting, StateManaged)
	b.logger.Info("started web application", "module", key)
	return app, nil
}

// ModuleStopping stops the application of m, if the bridge manages one.
// A failure to stop is logged; the association is dropped either way.
func (b *Bridge) ModuleStopping(m module.Module) {
	key := m.Key()

	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok || e.state != StateManaged {
		b.mu.Unlock()
		return
	}
	e.state = StateStopping
	b.mu.Unlock()
	b.transition(StateManaged, StateStopping)

	if err := e.app.Stop(); err != nil {
		b.logger.Warn("failed to stop web application", "module", key, "error", err)
		b.metrics.LifecycleError("stop")
	} else {
		b.logger.Info("stopped web application", "module", key)
	}

	b.mu.Lock()
	delete(b.entries, key)
	b.order = slices.DeleteFunc(b.order, func(k string) bool { return k == key })
	b.mu.Unlock()
	b.transition(StateStopping, StateUnmanaged)
}

// Open deploys the web modules among modules, which were already started
// when the bridge was created. Failures are logged per module. It returns
// the number of applications started.
func (b *Bridge) Open(modules []module.Module) int {
	started := 0
	for _, m := range modules {
		app, err := b.ModuleStarting(m)
		if err != nil {
			b.logger.Error("failed to deploy web module", "module", m.String(), "error", err)
			continue
		}
		if app != nil {
			started++
		}
	}
	return started
}

// Close stops every managed application, most recently started first, and
// halts the container if it supports it.
func (b *Bridge) Close() {
	for _, m := range slices.Backward(b.Managed()) {
		b.ModuleStopping(m)
	}
	if h, ok := b.container.(Halter); ok {
		h.Halt()
	}
}

// Application returns the managed application of m.
func (b *Bridge) Application(m module.Module) (Application, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[m.Key()]
	if !ok || e.state != StateManaged {
		return nil, false
	}
	return e.app, true
}

// State returns the lifecycle state of m.
func (b *Bridge) State(m module.Module) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[m.Key()]; ok {
		return e.state
	}
	return StateUnmanaged
}

// Managed returns the managed modules in the order they were started.
func (b *Bridge) Managed() []module.Module {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]module.Module, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.entries[k].module)
	}
	return out
}

func (b *Bridge) transition(from, to State) {
	b.metrics.LifecycleTransition(from.String(), to.String())
}
