// Package config provides process configuration for chartform with Viper
// integration: a YAML config file, environment variable overrides, and
// optional hot-reload of the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/bnema/chartform/internal/gitsync"
)

// Config represents the complete configuration for chartform.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Values     ValuesConfig     `mapstructure:"values" yaml:"values"`
	Descriptor DescriptorConfig `mapstructure:"descriptor" yaml:"descriptor"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	Git        gitsync.Config   `mapstructure:"git" yaml:"git"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ValuesConfig locates the values document.
type ValuesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DescriptorConfig locates the field metadata descriptor.
type DescriptorConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

// HistoryConfig locates the update history database. An empty path disables
// history recording.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager. An explicit path pins the
// config file; otherwise chartform.yaml is searched in the working directory
// and /etc/chartform.
func NewManager(explicitPath string) (*Manager, error) {
	v := viper.New()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName("chartform")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/chartform")
	}

	v.SetEnvPrefix("CHARTFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The git settings mirror the override surface the deployment expects:
	// every setting reachable without editing the config file.
	bindings := map[string]string{
		"server.host":                 "SERVER_HOST",
		"server.port":                 "SERVER_PORT",
		"values.path":                 "VALUES_PATH",
		"descriptor.path":             "DESCRIPTOR_PATH",
		"descriptor.watch":            "DESCRIPTOR_WATCH",
		"history.path":                "HISTORY_PATH",
		"git.enabled":                 "GIT_ENABLED",
		"git.repo_url":                "GIT_REPO_URL",
		"git.branch":                  "GIT_BRANCH",
		"git.values_path":             "GIT_VALUES_PATH",
		"git.local_path":              "GIT_LOCAL_PATH",
		"git.author_name":             "GIT_AUTHOR_NAME",
		"git.author_email":            "GIT_AUTHOR_EMAIL",
		"git.commit_message_template": "GIT_COMMIT_MESSAGE_TEMPLATE",
		"git.auto_pull_on_start":      "GIT_AUTO_PULL_ON_START",
		"git.auto_push_on_update":     "GIT_AUTO_PUSH_ON_UPDATE",
		"git.auth.method":             "GIT_AUTH_METHOD",
		"git.auth.token":              "GIT_TOKEN",
		"git.auth.ssh_key_path":       "GIT_SSH_KEY_PATH",
		"logging.level":               "LOG_LEVEL",
		"logging.format":              "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "CHARTFORM_"+env); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables. A missing
// config file is fine; defaults plus environment cover a bare deployment.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(config)

	m.config = config
	return nil
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configCopy := *m.config
	return &configCopy
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}

// Watch starts watching the config file for changes and reloads automatically.
func (m *Manager) Watch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return
	}

	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(_ fsnotify.Event) {
		if err := m.reload(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to reload config: %v\n", err)
			return
		}

		m.mu.RLock()
		config := m.config
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		for _, callback := range callbacks {
			callback(config)
		}
	})

	m.watching = true
}

// OnConfigChange registers a callback invoked after each successful reload.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}

func (m *Manager) reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		return err
	}

	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return err
	}
	normalize(config)

	m.config = config
	return nil
}

func normalize(c *Config) {
	if c.Git.LocalPath == "" {
		c.Git.LocalPath = filepath.Join(os.TempDir(), "chartform-mirror")
	}
}

func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("server.host", defaults.Server.Host)
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.cors_origins", defaults.Server.CORSOrigins)
	m.viper.SetDefault("values.path", defaults.Values.Path)
	m.viper.SetDefault("descriptor.path", defaults.Descriptor.Path)
	m.viper.SetDefault("descriptor.watch", defaults.Descriptor.Watch)
	m.viper.SetDefault("history.path", defaults.History.Path)
	m.viper.SetDefault("git.enabled", defaults.Git.Enabled)
	m.viper.SetDefault("git.branch", defaults.Git.Branch)
	m.viper.SetDefault("git.values_path", defaults.Git.ValuesPath)
	m.viper.SetDefault("git.auto_pull_on_start", defaults.Git.AutoPullOnStart)
	m.viper.SetDefault("git.auto_push_on_update", defaults.Git.AutoPushOnUpdate)
	m.viper.SetDefault("git.auth.method", defaults.Git.Auth.Method)
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
}
