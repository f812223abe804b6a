package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Environment variables read by the launcher.
const (
	EnvRoot         = "SNAPLAUNCHER_ROOT"
	EnvCI           = "SNAPLAUNCHER_CI"
	EnvPackageCache = "SNAPLAUNCHER_PACKAGE_CACHE"
	EnvToolArgs     = "SNAPLAUNCHER_TOOL_ARGS"
	EnvLogLevel     = "SNAPLAUNCHER_LOG_LEVEL"
)

const (
	keyRoot         = "root"
	keyCI           = "ci"
	keyPackageCache = "package_cache"
	keyToolArgs     = "tool_args"
	keyLogLevel     = "log_level"
)

// Environment is the process environment relevant to the launcher.
type Environment struct {
	// RootOverride replaces the installation root derived from the launcher path.
	RootOverride string
	// CI is set when running under continuous integration.
	CI bool
	// PackageCache overrides the package cache location of child processes.
	PackageCache string
	// ToolArgs is the raw extra-arguments value, kept verbatim for the compile key.
	ToolArgs string
	// LogLevel is an optional log level name.
	LogLevel string
}

// LoadEnvironment reads the launcher variables from the process environment.
// The CI toggle honors SNAPLAUNCHER_CI, then CI, then BOT.
func LoadEnvironment() *Environment {
	v := viper.New()

	// BindEnv only fails without a key, so errors are impossible here.
	_ = v.BindEnv(keyRoot, EnvRoot)
	_ = v.BindEnv(keyCI, EnvCI, "CI", "BOT")
	_ = v.BindEnv(keyPackageCache, EnvPackageCache)
	_ = v.BindEnv(keyToolArgs, EnvToolArgs)
	_ = v.BindEnv(keyLogLevel, EnvLogLevel)

	return &Environment{
		RootOverride: strings.TrimSpace(v.GetString(keyRoot)),
		CI:           v.GetBool(keyCI),
		PackageCache: strings.TrimSpace(v.GetString(keyPackageCache)),
		ToolArgs:     strings.TrimSpace(v.GetString(keyToolArgs)),
		LogLevel:     v.GetString(keyLogLevel),
	}
}

// ExtraArgs splits ToolArgs on whitespace.
func (e *Environment) ExtraArgs() []string {
	return strings.Fields(e.ToolArgs)
}

// ChildEnv returns the KEY=VALUE pairs added to every child process environment.
func (e *Environment) ChildEnv(cfg *Config) []string {
	var env []string

	if e.PackageCache != "" && cfg.PackageCacheEnv != "" {
		env = append(env, cfg.PackageCacheEnv+"="+e.PackageCache)
	}

	if e.CI && cfg.UsageOptOutEnv != "" {
		env = append(env, cfg.UsageOptOutEnv+"=true")
	}

	return env
}
