// SPDX-License-Identifier: MPL-2.0

// Package archive turns a web archive into a web application bundle in a
// single streaming pass. Only the manifest entry is decompressed; signature
// files under META-INF are dropped because the rewritten manifest would
// invalidate them, and every other entry is copied byte for byte.
package archive
