// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for the user. An error may link to an Issue, Markdown guidance
// that the CLI renders with glamour in verbose mode.
package issue
