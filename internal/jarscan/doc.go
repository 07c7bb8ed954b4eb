// SPDX-License-Identifier: MPL-2.0

// Package jarscan hands the content of a module's dependencies to a
// descriptor scanner. The Walker resolves the transitive dependencies of
// the module bound to a class loader, locates each one and passes it to a
// Callback as a directory path or an open archive. The LibraryScanner does
// the same for the jars under WEB-INF/lib of the module itself, and a Chain
// runs both with one callback.
package jarscan
