// Package config loads the optional YAML configuration shared by the prn
// CLI and server.
//
// The file is located by the --config flag or, failing that, the PRN_CONFIG
// environment variable. Without either the built-in defaults are used.
// A few environment variables then override the file: PRN_ADDRESS,
// PRN_LOG_FILE and the PEM material in PRN_TLS_KEY, PRN_TLS_CERT and
// PRN_CA_TLS_CERT.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddress = "localhost:50051"
	DefaultLogFile = "command_log.txt"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	// LogFile is where run records are appended.
	LogFile string `yaml:"log_file"`
	// WorkDirRoot, when set, gives every command its own directory below it.
	WorkDirRoot string      `yaml:"work_dir_root"`
	Run         RunConfig   `yaml:"run"`
	Watch       WatchConfig `yaml:"watch"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
	// The TLS fields hold PEM text, not paths.
	TLSKey  string `yaml:"tls_key"`
	TLSCert string `yaml:"tls_cert"`
	CACert  string `yaml:"ca_cert"`
}

// HasTLS reports whether all three PEM blocks are present.
func (s ServerConfig) HasTLS() bool {
	return strings.TrimSpace(s.TLSKey) != "" && strings.TrimSpace(s.TLSCert) != "" && strings.TrimSpace(s.CACert) != ""
}

type RunConfig struct {
	// Timeout of zero means none.
	Timeout time.Duration `yaml:"timeout"`
}

type WatchConfig struct {
	CheckInterval   time.Duration `yaml:"check_interval"`
	MaxRestarts     int           `yaml:"max_restarts"`
	RestartDelay    time.Duration `yaml:"restart_delay"`
	TerminateOnStop bool          `yaml:"terminate_on_stop"`
	StopGrace       time.Duration `yaml:"stop_grace"`
}

func Default() *Config {
	return &Config{
		Server:  ServerConfig{Address: DefaultAddress},
		LogFile: DefaultLogFile,
		Watch: WatchConfig{
			CheckInterval: 5 * time.Second,
			MaxRestarts:   3,
		},
	}
}

// Load reads path, or PRN_CONFIG when path is empty, on top of the defaults
// and applies the environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PRN_CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	override := func(dst *string, name string) {
		if v := os.Getenv(name); strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	override(&c.Server.Address, "PRN_ADDRESS")
	override(&c.LogFile, "PRN_LOG_FILE")
	override(&c.Server.TLSKey, "PRN_TLS_KEY")
	override(&c.Server.TLSCert, "PRN_TLS_CERT")
	override(&c.Server.CACert, "PRN_CA_TLS_CERT")
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	c.LogFile = expandVars(c.LogFile)
	c.WorkDirRoot = expandVars(c.WorkDirRoot)
}

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Address) == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if strings.TrimSpace(c.LogFile) == "" {
		errs = append(errs, errors.New("log_file is required"))
	}
	if c.Run.Timeout < 0 {
		errs = append(errs, fmt.Errorf("run.timeout must not be negative, got %s", c.Run.Timeout))
	}
	if c.Watch.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("watch.check_interval must be positive, got %s", c.Watch.CheckInterval))
	}
	if c.Watch.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("watch.max_restarts must not be negative, got %d", c.Watch.MaxRestarts))
	}
	if c.Watch.RestartDelay < 0 || c.Watch.StopGrace < 0 {
		errs = append(errs, errors.New("watch delays must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
