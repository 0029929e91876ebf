// Package config loads the chgl configuration from defaults, an optional file,
// CHGL_* environment variables and command line flags (in increasing priority).
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pnnl/chgl/logging"
	"github.com/pnnl/chgl/service/client"
	"github.com/pnnl/chgl/service/server"
)

const EnvPrefix = "CHGL"

type (
	// Config is the root configuration.
	Config struct {
		Log     logging.Config `mapstructure:"log"`
		Client  ClientConfig   `mapstructure:"client"`
		Server  ServerConfig   `mapstructure:"server"`
		Metrics MetricsConfig  `mapstructure:"metrics"`
	}

	ClientConfig struct {
		Address       string        `mapstructure:"address"`
		NumVertices   int64         `mapstructure:"num_vertices"`
		NumEdges      int64         `mapstructure:"num_edges"`
		ReplyWidth    int           `mapstructure:"reply_width"`
		Workers       int           `mapstructure:"workers"`
		DialTimeout   time.Duration `mapstructure:"dial_timeout"`
		MonitorPeriod time.Duration `mapstructure:"monitor_period"`
	}

	ServerConfig struct {
		Listen        string        `mapstructure:"listen"`
		ReplyWidth    int           `mapstructure:"reply_width"`
		MonitorPeriod time.Duration `mapstructure:"monitor_period"`
	}

	// MetricsConfig: Prometheus endpoint ("" disables it).
	MetricsConfig struct {
		Address string `mapstructure:"address"`
	}
)

// Default returns a Config populated with defaults.
func Default() *Config {
	clientCfg := client.DefaultConfig()
	serverCfg := server.DefaultConfig()

	return &Config{
		Log: logging.DefaultConfig(),
		Client: ClientConfig{
			Address:       "127.0.0.1:5555",
			NumVertices:   clientCfg.NumVertices,
			NumEdges:      clientCfg.NumEdges,
			ReplyWidth:    clientCfg.ReplyWidth,
			Workers:       clientCfg.Workers,
			DialTimeout:   clientCfg.DialTimeout,
			MonitorPeriod: clientCfg.MonitorPeriod,
		},
		Server: ServerConfig{
			Listen:        serverCfg.ListenAddress,
			ReplyWidth:    serverCfg.ReplyWidth,
			MonitorPeriod: serverCfg.MonitorPeriod,
		},
	}
}

// Load reads the configuration.
// path selects the config file; if empty, CHGL_CONFIG or "chgl.{yaml,toml,json}" in "." and "$HOME/.chgl" are tried.
// bindings maps config keys ("client.num_vertices") to command line flags; a flag wins once it is set.
// Environment variables use the CHGL prefix with "." and "-" replaced by "_" (CHGL_CLIENT_NUM_VERTICES).
func Load(path string, bindings map[string]*pflag.Flag) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Seed defaults so env-only configs work
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("client.address", cfg.Client.Address)
	v.SetDefault("client.num_vertices", cfg.Client.NumVertices)
	v.SetDefault("client.num_edges", cfg.Client.NumEdges)
	v.SetDefault("client.reply_width", cfg.Client.ReplyWidth)
	v.SetDefault("client.workers", cfg.Client.Workers)
	v.SetDefault("client.dial_timeout", cfg.Client.DialTimeout)
	v.SetDefault("client.monitor_period", cfg.Client.MonitorPeriod)
	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("server.reply_width", cfg.Server.ReplyWidth)
	v.SetDefault("server.monitor_period", cfg.Server.MonitorPeriod)
	v.SetDefault("metrics.address", cfg.Metrics.Address)

	for key, flag := range bindings {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, errors.Wrapf(err, "binding flag %s", key)
		}
	}

	// Choose config file
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chgl")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".chgl"))
		}
	}

	// Missing file is fine when searching, an explicit path has to exist
	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log")
	}
	if err := c.ClientConfig().Validate(); err != nil {
		return errors.Wrap(err, "client")
	}
	if err := c.ServerConfig().Validate(); err != nil {
		return errors.Wrap(err, "server")
	}

	return nil
}

// ClientConfig maps the client section to client.Config.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		Address:       c.Client.Address,
		NumVertices:   c.Client.NumVertices,
		NumEdges:      c.Client.NumEdges,
		ReplyWidth:    c.Client.ReplyWidth,
		Workers:       c.Client.Workers,
		DialTimeout:   c.Client.DialTimeout,
		MonitorPeriod: c.Client.MonitorPeriod,
	}
}

// ServerConfig maps the server section to server.Config.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		ListenAddress: c.Server.Listen,
		ReplyWidth:    c.Server.ReplyWidth,
		MonitorPeriod: c.Server.MonitorPeriod,
	}
}
