// SPDX-License-Identifier: MPL-2.0

// Package wab synthesizes the manifest of a web application bundle (WAB)
// from the manifest of a plain web archive.
//
// A [Synthesizer] classifies the archive, honours the
// [DefaultWABHeadersMarker] header and delegates the rewrite to a
// [HeaderTransformer]. [DefaultTransformer] is the stock transformer; hosts
// may inject their own. Transformation is all-or-nothing: a transformer
// error is returned as a [*TransformError] and no headers are produced.
package wab
