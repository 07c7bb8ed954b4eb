// SPDX-License-Identifier: MPL-2.0

package extender

const (
	// StateUnmanaged indicates the bridge holds no application for the module.
	StateUnmanaged State = iota
	// StateStarting indicates the application is being created and started.
	StateStarting
	// StateManaged indicates the application is running and owned by the bridge.
	StateManaged
	// StateStopping indicates the application is being stopped.
	StateStopping
)

// State is the lifecycle state of a module as seen by the bridge.
type State int32

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUnmanaged:
		return "unmanaged"
	case StateStarting:
		return "starting"
	case StateManaged:
		return "managed"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// IsTransitional returns true while an application is being started or stopped.
func (s State) IsTransitional() bool {
	return s == StateStarting || s == StateStopping
}
