// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform config directory when set.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir. Tests use it so that
// loading never reads the real user configuration.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset restores the platform config directory.
func Reset() {
	configDirOverride = ""
}
