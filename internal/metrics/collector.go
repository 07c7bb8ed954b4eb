// SPDX-License-Identifier: MPL-2.0

// Package metrics records what the archive transformer, the dependency
// walker and the lifecycle bridge did. Components take a Collector and
// default to Noop.
package metrics

import "time"

// Outcome labels shared by the collectors.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Collector receives measurements from the core components.
// Implementations must be safe for concurrent use.
type Collector interface {
	// TransformCompleted records one archive pass and its entry counts.
	TransformCompleted(copied, rewritten, dropped int, duration time.Duration, err error)
	// DependenciesResolved records the size of one resolved dependency set.
	DependenciesResolved(count int)
	// ModuleScanned records one visited dependency. kind is "directory",
	// "archive" or "unresolved"; outcome is one of the Outcome constants.
	ModuleScanned(kind, outcome string)
	// LifecycleTransition records a module moving between lifecycle states.
	LifecycleTransition(from, to string)
	// LifecycleError records a failed start or stop.
	LifecycleError(operation string)
}

// noop discards everything.
type noop struct{}

// Noop is a Collector that records nothing.
var Noop Collector = noop{}

func (noop) TransformCompleted(int, int, int, time.Duration, error) {}
func (noop) DependenciesResolved(int)                              {}
func (noop) ModuleScanned(string, string)                          {}
func (noop) LifecycleTransition(string, string)                    {}
func (noop) LifecycleError(string)                                 {}
