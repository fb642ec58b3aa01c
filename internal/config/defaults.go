package config

import "github.com/bnema/chartform/internal/gitsync"

// DefaultConfig returns the configuration used when no file or environment
// overrides are present: a local server editing ./values.yaml guided by
// ./descriptor.yaml, with the git mirror off.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Values: ValuesConfig{
			Path: "values.yaml",
		},
		Descriptor: DescriptorConfig{
			Path:  "descriptor.yaml",
			Watch: true,
		},
		History: HistoryConfig{
			Path: "chartform-history.db",
		},
		Git: gitsync.Config{
			Enabled:          false,
			Branch:           "main",
			ValuesPath:       "values.yaml",
			AutoPullOnStart:  true,
			AutoPushOnUpdate: true,
			Auth:             gitsync.AuthConfig{Method: "token"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
