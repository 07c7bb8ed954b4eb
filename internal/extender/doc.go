// SPDX-License-Identifier: MPL-2.0

// Package extender ties the lifecycle of web modules to the lifecycle of
// their web applications. A module moves from unmanaged through starting to
// managed when it starts, and back through stopping when it stops.
package extender
