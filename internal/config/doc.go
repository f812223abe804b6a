// Package config defines launcher settings and provides helpers to load,
// validate and save them in YAML format.
//
// Config describes the cache layout and the external command templates; it
// lives in the installation root and falls back to defaults when absent.
// Environment reads the SNAPLAUNCHER_* variables (and the common CI/BOT
// toggles) through viper.
package config
