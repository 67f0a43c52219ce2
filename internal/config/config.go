// Package config provides the viper-backed configuration singleton, the
// same discovery/override pattern BeadsLog's internal/config uses, adapted
// for coordctl's flags.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/doldecomp/agentcoord/internal/debug"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Must be called once
// at application startup, before any Get* call.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD to find a project .coordctl/config.yaml, so
	// commands work from any worktree subdirectory.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".coordctl", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/coordctl/config.yaml)
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "coordctl", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.coordctl/config.yaml)
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".coordctl", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// Environment variables take precedence over the config file:
	// COORDCTL_JSON, COORDCTL_NO_DAEMON, COORDCTL_DB, COORDCTL_ACTOR, ...
	v.SetEnvPrefix("COORDCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// CLI-wide defaults
	v.SetDefault("json", false)
	v.SetDefault("no-daemon", false)
	v.SetDefault("db", "")
	v.SetDefault("actor", "")
	v.SetDefault("worktree", "")

	// Claim/lock arbitration defaults
	v.SetDefault("claim.ttl", "1h")
	v.SetDefault("lock.ttl", "30m")

	// Lifecycle defaults
	v.SetDefault("lifecycle.broken-build-threshold", 3)
	v.SetDefault("lifecycle.match-complete-percent", 95.0)

	// External process timeouts
	v.SetDefault("process.cc", "")
	v.SetDefault("process.ninja-timeout", "2m")
	v.SetDefault("process.git-timeout", "30s")
	v.SetDefault("process.preprocessor-timeout", "30s")

	// Remote scratch-service client defaults
	v.SetDefault("scratch.local-url", "")
	v.SetDefault("scratch.production-url", "")
	v.SetDefault("scratch.url-cache-ttl", "1h")
	v.SetDefault("scratch.http-timeout", "30s")
	v.SetDefault("scratch.retry-max", 3)
	v.SetDefault("scratch.retry-base-delay", "200ms")

	// Daemon/RPC defaults, following the same socket-path convention as the
	// rest of the daemon lock/registry code
	v.SetDefault("daemon.idle-timeout", "10m")
	v.SetDefault("daemon.auto-start", true)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("loaded config from %s", v.ConfigFileUsed())
	} else {
		debug.Logf("no config.yaml found; using defaults and environment variables")
	}

	return nil
}

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault    ConfigSource = "default"
	SourceConfigFile ConfigSource = "config_file"
	SourceEnvVar     ConfigSource = "env_var"
	SourceFlag       ConfigSource = "flag"
)

// GetValueSource returns the source of a configuration value.
// Priority (highest to lowest): env var > config file > default.
// Flag overrides are handled separately by the CLI layer.
func GetValueSource(key string) ConfigSource {
	if v == nil {
		return SourceDefault
	}

	envKey := "COORDCTL_" + strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(key, "-", "_"), ".", "_"))
	if os.Getenv(envKey) != "" {
		return SourceEnvVar
	}

	if v.InConfig(key) {
		return SourceConfigFile
	}

	return SourceDefault
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a float configuration value.
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value, overriding file/env/defaults.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// GetActor resolves the acting agent's identity for audit logging.
// Priority chain:
//  1. flagValue (if non-empty, from --actor)
//  2. COORDCTL_ACTOR env var / config.yaml actor field
//  3. git config user.name
//  4. hostname
func GetActor(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if actor := GetString("actor"); actor != "" {
		return actor
	}

	cmd := exec.Command("git", "config", "user.name")
	if output, err := cmd.Output(); err == nil {
		if gitUser := strings.TrimSpace(string(output)); gitUser != "" {
			return gitUser
		}
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}

	return "unknown"
}
