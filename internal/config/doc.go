// SPDX-License-Identifier: MPL-2.0

// Package config loads the settings of the mb tool with Viper.
//
// Settings come, from lowest to highest priority, from built-in defaults,
// the CUE settings file (config.cue in the user configuration directory),
// MB_* environment variables and command line flags. They are distinct from
// the build document, which describes a project and is handled by the
// project package.
package config
