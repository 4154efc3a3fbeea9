// Package config loads and validates replink.yaml, the file describing how
// to reach (or start) the nREPL server for a project.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/replink/paths"
)

const configFileName = "replink.yaml"

// Default timeouts applied when the config leaves them unset.
const (
	DefaultStartTimeout = 120 * time.Second
	DefaultEvalTimeout  = 60 * time.Second
)

// Config describes one nREPL endpoint: either an explicit port, or enough
// information to start the server and discover the port it picked.
type Config struct {
	// Port connects directly, skipping launch and discovery entirely.
	Port int `yaml:"port,omitempty"`

	// StartCommand is a shell command that launches the nREPL server
	// (e.g. "lein repl :headless" or "clojure -M:nrepl"). Pipes and shell
	// syntax are allowed — the command runs under the platform shell.
	StartCommand string `yaml:"start_command,omitempty"`

	// ParseStdout discovers the port by scanning the child's output for a
	// port announcement. Only meaningful together with StartCommand.
	ParseStdout bool `yaml:"parse_stdout,omitempty"`

	// PortFile discovers the port from the .nrepl-port sentinel file.
	// Combined with StartCommand this enables coordinated discovery:
	// delete the stale file, launch, then wait for a fresh one.
	PortFile bool `yaml:"port_file,omitempty"`

	// PortFilePath overrides the sentinel file location.
	// Default: <project>/.nrepl-port.
	PortFilePath string `yaml:"port_file_path,omitempty"`

	// Project is the working directory for the server process and the
	// default location of the sentinel file. Defaults to the current
	// directory.
	Project string `yaml:"project,omitempty"`

	// Host the server listens on. Defaults to localhost.
	Host string `yaml:"host,omitempty"`

	StartTimeoutSec int  `yaml:"start_timeout_sec,omitempty"`
	EvalTimeoutSec  int  `yaml:"eval_timeout_sec,omitempty"`
	Debug           bool `yaml:"debug,omitempty"`
}

// Load reads the config, checking the project directory first and falling
// back to the user config dir. A missing file yields a zero Config, not an
// error — everything can also be supplied by flags.
func Load(projectDir string) (*Config, error) {
	candidates := []string{}
	if projectDir != "" {
		candidates = append(candidates, filepath.Join(projectDir, configFileName))
	}
	if userPath, err := paths.ConfigFilePath(); err == nil {
		candidates = append(candidates, userPath)
	}

	for _, fp := range candidates {
		cfg, err := loadFile(fp)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}

	cfg := &Config{}
	cfg.applyDefaults()
	return cfg, nil
}

// loadFile parses one candidate path. Returns nil, nil if the file does not exist.
func loadFile(fp string) (*Config, error) {
	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", fp, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", fp, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", fp, err)
	}
	return &cfg, nil
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Project == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Project = wd
		}
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.StartTimeoutSec == 0 {
		c.StartTimeoutSec = int(DefaultStartTimeout / time.Second)
	}
	if c.EvalTimeoutSec == 0 {
		c.EvalTimeoutSec = int(DefaultEvalTimeout / time.Second)
	}
}

// Validate checks field ranges. It does not require a port or a start
// command — the discovery coordinator reports that case with full context.
func (c *Config) Validate() error {
	if c.Port != 0 && (c.Port < 1 || c.Port > 65535) {
		return fmt.Errorf("port %d out of range (1-65535)", c.Port)
	}
	if c.StartTimeoutSec < 0 {
		return fmt.Errorf("start_timeout_sec must not be negative")
	}
	if c.EvalTimeoutSec < 0 {
		return fmt.Errorf("eval_timeout_sec must not be negative")
	}
	if c.ParseStdout && c.StartCommand == "" {
		return fmt.Errorf("parse_stdout requires start_command")
	}
	return nil
}

// StartTimeout returns the discovery budget as a duration.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSec) * time.Second
}

// EvalTimeout returns the per-evaluation budget as a duration.
func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutSec) * time.Second
}

// SentinelPath returns the sentinel file path: the explicit override when
// set, otherwise <project>/.nrepl-port.
func (c *Config) SentinelPath() string {
	if c.PortFilePath != "" {
		return c.PortFilePath
	}
	return filepath.Join(c.Project, ".nrepl-port")
}
