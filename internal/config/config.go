// internal/config/config.go
//
// This package handles configuration and the .beads-continuation directory.
// Every project that runs the daemon gets a .beads-continuation/ folder in its
// root holding config.yaml and the log file.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".beads-continuation"

	// DefaultBridgeHost keeps the event bridge on loopback.
	DefaultBridgeHost = "127.0.0.1"
	// DefaultBridgePort is where the OpenCode plugin posts events.
	DefaultBridgePort = 8766

	defaultHostURL        = "http://127.0.0.1:4096"
	defaultTrackerCommand = "bd"
	defaultTrackerTimeout = 10 * time.Second
	defaultVCSCommand     = "git"
)

const defaultProjectConfigYAML = `# beads-continuation project configuration
version: 1

# Event bridge the OpenCode plugin posts lifecycle events to.
bridge:
  enabled: true
  host: 127.0.0.1
  port: 8766

# OpenCode server used for toasts and prompt injection.
host:
  url: http://127.0.0.1:4096

# beads CLI. timeout bounds each bd invocation.
tracker:
  command: bd
  timeout: 10s

vcs:
  command: git
`

// BridgeConfig configures the inbound HTTP bridge.
type BridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// HostConfig points at the agent host API.
type HostConfig struct {
	URL string `yaml:"url"`
}

// TrackerConfig configures the bd CLI.
type TrackerConfig struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// VCSConfig configures the git CLI.
type VCSConfig struct {
	Command string `yaml:"command"`
}

// ProjectConfig models .beads-continuation/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Host    HostConfig    `yaml:"host"`
	Tracker TrackerConfig `yaml:"tracker"`
	VCS     VCSConfig     `yaml:"vcs"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the repository the agent works in; bd and git run here.
	ProjectDir string

	// ConfigDir is ProjectDir/.beads-continuation
	ConfigDir string

	Project ProjectConfig
}

// InitDir creates the .beads-continuation directory structure and a default
// config.yaml when none exists.
//
// .beads-continuation/
// ├── config.yaml
// └── logs/
func InitDir(projectDir string) error {
	dir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", dir, err)
	}
	return ensureProjectConfig(filepath.Join(dir, "config.yaml"))
}

// LoadEnvFile loads ProjectDir/.env without overriding variables that are
// already set. A missing file is not an error.
func LoadEnvFile(projectDir string) error {
	path := filepath.Join(projectDir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// NewConfig loads the project config, then applies BDCONT_* environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		ConfigDir:  filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.Project.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.ConfigDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ConfigDir, "config.yaml")
}

// BridgeEnabled reports whether serve should listen. Unset means enabled.
func (c *Config) BridgeEnabled() bool {
	return c.Project.Bridge.Enabled == nil || *c.Project.Bridge.Enabled
}

// BridgeHost returns the bridge bind host.
func (c *Config) BridgeHost() string {
	return c.Project.Bridge.Host
}

// BridgePort returns the bridge TCP port.
func (c *Config) BridgePort() int {
	return c.Project.Bridge.Port
}

// HostURL returns the agent host API root.
func (c *Config) HostURL() string {
	return c.Project.Host.URL
}

// TrackerCommand returns the bd binary.
func (c *Config) TrackerCommand() string {
	return c.Project.Tracker.Command
}

// TrackerTimeout bounds a single bd invocation.
func (c *Config) TrackerTimeout() time.Duration {
	return c.Project.Tracker.Timeout
}

// VCSCommand returns the git binary.
func (c *Config) VCSCommand() string {
	return c.Project.VCS.Command
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Bridge.Host) == "" {
		pc.Bridge.Host = DefaultBridgeHost
	}
	if pc.Bridge.Port == 0 {
		pc.Bridge.Port = DefaultBridgePort
	}
	if strings.TrimSpace(pc.Host.URL) == "" {
		pc.Host.URL = defaultHostURL
	}
	if strings.TrimSpace(pc.Tracker.Command) == "" {
		pc.Tracker.Command = defaultTrackerCommand
	}
	if pc.Tracker.Timeout == 0 {
		pc.Tracker.Timeout = defaultTrackerTimeout
	}
	if strings.TrimSpace(pc.VCS.Command) == "" {
		pc.VCS.Command = defaultVCSCommand
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
	pc.Host.URL = strings.TrimRight(strings.TrimSpace(pc.Host.URL), "/")
	pc.Tracker.Command = strings.TrimSpace(pc.Tracker.Command)
	pc.VCS.Command = strings.TrimSpace(pc.VCS.Command)
}

// applyEnvOverrides layers BDCONT_* variables over the file. Values that do
// not parse are errors rather than silently ignored.
func (pc *ProjectConfig) applyEnvOverrides() error {
	if value := env("BDCONT_BRIDGE_ENABLED"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("BDCONT_BRIDGE_ENABLED: %w", err)
		}
		pc.Bridge.Enabled = &enabled
	}
	if value := env("BDCONT_BRIDGE_HOST"); value != "" {
		pc.Bridge.Host = value
	}
	if value := env("BDCONT_BRIDGE_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("BDCONT_BRIDGE_PORT: %w", err)
		}
		pc.Bridge.Port = port
	}
	if value := env("BDCONT_HOST_URL"); value != "" {
		pc.Host.URL = value
	}
	if value := env("BDCONT_TRACKER_COMMAND"); value != "" {
		pc.Tracker.Command = value
	}
	if value := env("BDCONT_TRACKER_TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("BDCONT_TRACKER_TIMEOUT: %w", err)
		}
		pc.Tracker.Timeout = timeout
	}
	if value := env("BDCONT_VCS_COMMAND"); value != "" {
		pc.VCS.Command = value
	}
	pc.normalize()
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Bridge.Port < 1 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535, got %d", pc.Bridge.Port)
	}
	if pc.Bridge.Host == "" {
		return fmt.Errorf("bridge.host is required")
	}
	parsed, err := url.Parse(pc.Host.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("host.url must be an http(s) URL, got %q", pc.Host.URL)
	}
	if pc.Tracker.Command == "" {
		return fmt.Errorf("tracker.command is required")
	}
	if pc.Tracker.Timeout < 0 {
		return fmt.Errorf("tracker.timeout must not be negative")
	}
	if pc.VCS.Command == "" {
		return fmt.Errorf("vcs.command is required")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
