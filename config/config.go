// Package config loads the server configuration from an optional file and AUXQ_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration holds every setting of the auxiliary querier
type Configuration struct {
	Port            int    `mapstructure:"port"`
	FlightPort      int    `mapstructure:"flight_port"`
	DisableFlight   bool   `mapstructure:"disable_flight"`
	DataDir         string `mapstructure:"data_dir"`
	LogLevel        string `mapstructure:"log_level"`
	LogFormat       string `mapstructure:"log_format"`
	Timezone        string `mapstructure:"timezone"`
	TimestampColumn string `mapstructure:"timestamp_column"`
}

// Config is the loaded configuration
var Config = defaults()

func defaults() *Configuration {
	return &Configuration{
		Port:            7972,
		FlightPort:      8082,
		DataDir:         "./data",
		LogLevel:        "info",
		LogFormat:       "json",
		TimestampColumn: "timestamps",
	}
}

// InitConfig loads the configuration into Config. An empty path reads the environment only.
func InitConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

// Load reads the configuration without touching Config
func Load(path string) (*Configuration, error) {
	v := viper.New()
	def := defaults()
	v.SetDefault("port", def.Port)
	v.SetDefault("flight_port", def.FlightPort)
	v.SetDefault("disable_flight", def.DisableFlight)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("timezone", def.Timezone)
	v.SetDefault("timestamp_column", def.TimestampColumn)

	v.SetEnvPrefix("AUXQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves Timezone, nil when unset
func (c *Configuration) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
