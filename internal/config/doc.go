// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from config.cue in the platform config directory
// (~/.config/wabkit on Linux, ~/Library/Application Support/wabkit on macOS,
// %APPDATA%\wabkit on Windows) or from the working directory. Files are
// validated against an embedded CUE schema (config_schema.cue) and WABKIT_*
// environment variables override any value.
package config
