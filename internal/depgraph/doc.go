// SPDX-License-Identifier: MPL-2.0

// Package depgraph computes the transitive dependency closure of a module.
// The walk is an explicit breadth-first traversal over a visited set keyed
// by module identity, so it terminates on any graph, cycles included, and
// never reports the root as its own dependency.
package depgraph
