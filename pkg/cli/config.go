// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-redfish/pkg/redfishfs"
)

// EnvPrefix prefixes fishtool environment overrides, for example
// FISHTOOL_CONFIG.
const EnvPrefix = "FISHTOOL"

// Config holds the fishtool settings.
type Config struct {
	// ConfigFile is the Redfish configuration file, passed to the
	// filesystem as fs.redfish.configFile.
	ConfigFile   string
	OutputFormat string
	Cwd          string

	// User overrides the current OS user.
	User     string
	LogLevel string
}

// InitConfig initializes the configuration using Viper.
// Configuration priority: flags > env vars > config file > defaults.
func InitConfig(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("output", string(FormatText))
	v.SetDefault("log-level", "warn")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".fishtool")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return v, nil
}

// GetConfig extracts the configuration from Viper into a Config struct.
// The Redfish configuration file may also come from fs.redfish.configFile.
func GetConfig(v *viper.Viper) *Config {
	configFile := v.GetString("config")
	if configFile == "" {
		configFile = v.GetString(redfishfs.ConfigFileKey)
	}
	return &Config{
		ConfigFile:   configFile,
		OutputFormat: v.GetString("output"),
		Cwd:          v.GetString("cwd"),
		User:         v.GetString("user"),
		LogLevel:     v.GetString("log-level"),
	}
}

// ValidateConfig checks the configuration and expands a leading ~ in the
// configuration file path.
func ValidateConfig(cfg *Config) error {
	if cfg.ConfigFile == "" {
		return ErrConfigFileRequired
	}
	if strings.HasPrefix(cfg.ConfigFile, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cfg.ConfigFile = filepath.Join(home, cfg.ConfigFile[1:])
	}

	switch OutputFormat(cfg.OutputFormat) {
	case FormatText, FormatJSON, FormatYAML, FormatTable:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedOutputFormat, cfg.OutputFormat)
	}
}

// DisplayConfig formats the configuration in the given format.
func DisplayConfig(cfg *Config, format OutputFormat) string {
	fields := []field{
		{"Config File", cfg.ConfigFile},
		{"Working Directory", cfg.Cwd},
		{"User", cfg.User},
		{"Output Format", cfg.OutputFormat},
		{"Log Level", cfg.LogLevel},
	}
	switch format {
	case FormatJSON:
		return formatJSON(fieldMap(fields))
	case FormatYAML:
		return formatYAML(fieldMap(fields))
	case FormatTable:
		return formatFieldTable("Setting", fields)
	default:
		return formatFieldText(fields)
	}
}
