package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the installation layout and the external commands used to
// rebuild and launch the cached tool.
type Config struct {
	// Layout locates the cache and the tool sources inside the installation root.
	Layout Layout `yaml:"layout"`
	// Commands are argv templates for the external steps.
	Commands Commands `yaml:"commands"`
	// Retry controls the dependency-resolution retry loop.
	Retry Retry `yaml:"retry"`
	// Lock tunes the fallback lock.
	Lock Lock `yaml:"lock"`
	// MinGitVersion is an optional lowest accepted git version, e.g. "2.25.0".
	MinGitVersion string `yaml:"min_git_version,omitempty"`
	// UsageOptOutEnv is exported as "true" to every child process in CI mode.
	UsageOptOutEnv string `yaml:"usage_opt_out_env"`
	// PackageCacheEnv receives the package-cache override for child processes.
	PackageCacheEnv string `yaml:"package_cache_env"`
}

// Layout lists paths relative to the installation root. Manifest, ManifestLock
// and EntryPoint are relative to ToolDir.
type Layout struct {
	CacheDir       string   `yaml:"cache_dir"`
	Artifact       string   `yaml:"artifact"`
	Stamp          string   `yaml:"stamp"`
	LockFile       string   `yaml:"lock_file"`
	SpinLockFile   string   `yaml:"spin_lock_file"`
	VersionMarkers []string `yaml:"version_markers"`
	ToolDir        string   `yaml:"tool_dir"`
	Manifest       string   `yaml:"manifest"`
	ManifestLock   string   `yaml:"manifest_lock"`
	EntryPoint     string   `yaml:"entry_point"`
}

// extraArgsPlaceholder expands to zero or more arguments.
const extraArgsPlaceholder = "{extra_args}"

// Commands are argv templates. Placeholders: {root}, {tool_dir}, {entry_point},
// {artifact}, {output} and {extra_args}.
type Commands struct {
	// ResolveDependencies runs in the tool directory and is retried on failure.
	ResolveDependencies []string `yaml:"resolve_dependencies"`
	// Bootstrap makes sure the toolchain is present. It runs on every rebuild.
	Bootstrap []string `yaml:"bootstrap"`
	// Compile writes the new artifact to {output}.
	Compile []string `yaml:"compile"`
	// Delegate launches the artifact; the caller's arguments are appended.
	Delegate []string `yaml:"delegate"`
}

// Retry bounds the dependency-resolution step.
type Retry struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int `yaml:"attempts"`
	// Delay is the fixed pause between two tries.
	Delay time.Duration `yaml:"delay"`
}

// Lock tunes the PID lock file used where advisory locks are unavailable.
type Lock struct {
	// SpinInterval is the pause between two exclusive-create attempts.
	SpinInterval time.Duration `yaml:"spin_interval"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the installation root.
	DefaultConfigFilename = "snaplauncher.yaml"

	// DefaultRetryAttempts is the total number of dependency-resolution attempts.
	DefaultRetryAttempts = 10

	// DefaultRetryDelay is the pause between dependency-resolution attempts.
	DefaultRetryDelay = 5 * time.Second

	// DefaultSpinInterval is the pause between PID lock file attempts.
	DefaultSpinInterval = 100 * time.Millisecond

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errEmptyPath is returned when a mandatory layout path is empty.
	errEmptyPath = errors.New("layout path must be provided")
	// errEmptyCommand is returned when a command template has no program.
	errEmptyCommand = errors.New("command template must name a program")
	// errOptionalProgram is returned when the program token may expand to nothing.
	errOptionalProgram = errors.New("command template must not start with {extra_args}")
	// errBadRetry is returned for a non-positive attempt count or negative delay.
	errBadRetry = errors.New("retry attempts must be positive and delay non-negative")
)

// Default returns the settings used when no settings file exists.
// They describe a Go tool kept in tool/ and built into bin/cache.
func Default() *Config {
	return &Config{
		Layout: Layout{
			CacheDir:       filepath.Join("bin", "cache"),
			Artifact:       filepath.Join("bin", "cache", "tool.bin"),
			Stamp:          filepath.Join("bin", "cache", "tool.stamp"),
			LockFile:       filepath.Join("bin", "cache", ".rebuild.lock"),
			SpinLockFile:   filepath.Join("bin", "cache", ".rebuild.pid"),
			VersionMarkers: []string{"version", filepath.Join("bin", "cache", "tool.version.json")},
			ToolDir:        "tool",
			Manifest:       "go.mod",
			ManifestLock:   "go.sum",
			EntryPoint:     ".",
		},
		Commands: Commands{
			ResolveDependencies: []string{"go", "mod", "download"},
			Bootstrap:           []string{"go", "version"},
			Compile:             []string{"go", "build", "{extra_args}", "-o", "{output}", "{entry_point}"},
			Delegate:            []string{"{artifact}"},
		},
		Retry: Retry{
			Attempts: DefaultRetryAttempts,
			Delay:    DefaultRetryDelay,
		},
		Lock: Lock{
			SpinInterval: DefaultSpinInterval,
		},
		UsageOptOutEnv:  "SNAPLAUNCHER_SUPPRESS_ANALYTICS",
		PackageCacheEnv: "GOMODCACHE",
	}
}

// Load reads configuration from the provided path over the defaults and validates it.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	paths := map[string]string{
		"cache_dir":      cfg.Layout.CacheDir,
		"artifact":       cfg.Layout.Artifact,
		"stamp":          cfg.Layout.Stamp,
		"lock_file":      cfg.Layout.LockFile,
		"spin_lock_file": cfg.Layout.SpinLockFile,
		"tool_dir":       cfg.Layout.ToolDir,
		"manifest":       cfg.Layout.Manifest,
		"manifest_lock":  cfg.Layout.ManifestLock,
		"entry_point":    cfg.Layout.EntryPoint,
	}
	for name, value := range paths {
		if value == "" {
			return fmt.Errorf("%s: %w", name, errEmptyPath)
		}
	}

	templates := map[string][]string{
		"resolve_dependencies": cfg.Commands.ResolveDependencies,
		"bootstrap":            cfg.Commands.Bootstrap,
		"compile":              cfg.Commands.Compile,
		"delegate":             cfg.Commands.Delegate,
	}
	for name, template := range templates {
		if len(template) == 0 || template[0] == "" {
			return fmt.Errorf("%s: %w", name, errEmptyCommand)
		}

		if template[0] == extraArgsPlaceholder {
			return fmt.Errorf("%s: %w", name, errOptionalProgram)
		}
	}

	if cfg.Retry.Attempts <= 0 || cfg.Retry.Delay < 0 {
		return errBadRetry
	}

	// Set default spin interval if not specified.
	if cfg.Lock.SpinInterval <= 0 {
		cfg.Lock.SpinInterval = DefaultSpinInterval
	}

	if cfg.MinGitVersion == "" {
		return nil
	}

	if _, err := semver.NewVersion(cfg.MinGitVersion); err != nil {
		return fmt.Errorf("invalid min_git_version: %w", err)
	}

	return nil
}
