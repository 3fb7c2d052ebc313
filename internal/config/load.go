package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadFromPath reads and validates configuration from a specific file path.
// Defaults and TIMELAPSE_* environment overrides apply as they do for Init.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(ExpandPath(path))
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from %s; %w", path, err)
	}

	return unmarshalConfig(v)
}

// unmarshalConfig converts viper config to a validated Config struct.
func unmarshalConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
