// SPDX-License-Identifier: MPL-2.0

// Package manifest reads and writes archive manifests (META-INF/MANIFEST.MF).
//
// A manifest is a main section of "Name: Value" headers followed by zero or
// more named sections, each introduced by a "Name:" header and separated by
// blank lines. Lines longer than 72 bytes are folded onto continuation lines
// that start with a single space.
//
// The package keeps header order so that a parsed manifest can be written
// back with the same layout, and offers [ParseClauses] for the
// comma-separated clause syntax used by module headers such as
// Import-Package and Bundle-ClassPath.
package manifest
