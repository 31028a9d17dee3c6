package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the relay runtime parameters.
type Config struct {
	ListenAddress       string        `mapstructure:"listen_address"`
	AdminAddress        string        `mapstructure:"admin_address"`
	LogLevel            string        `mapstructure:"log_level"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
	Router              RouterConfig  `mapstructure:"router"`
}

// RouterConfig bounds the per-connection routing resources.
type RouterConfig struct {
	// SendBuffer is the capacity of each connection's outbound frame queue.
	// A recipient whose queue overflows is disconnected rather than allowed
	// to stall its senders.
	SendBuffer int `mapstructure:"send_buffer"`
	// MaxFrameBytes caps the size of a single inbound websocket message.
	MaxFrameBytes int64 `mapstructure:"max_frame_bytes"`
}

const (
	defaultListenAddress       = "0.0.0.0:3030"
	defaultAdminAddress        = "127.0.0.1:9100"
	defaultLogLevel            = "info"
	defaultShutdownGracePeriod = 10 * time.Second
	defaultSendBuffer          = 32
	defaultMaxFrameBytes       = 64 << 10
)

// Load reads configuration from the provided file path (if any) and the environment.
// Environment variables are prefixed with IRIS_ and can override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IRIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("listen_address", defaultListenAddress)
	v.SetDefault("admin_address", defaultAdminAddress)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("shutdown_grace_period", defaultShutdownGracePeriod.String())
	v.SetDefault("router.send_buffer", defaultSendBuffer)
	v.SetDefault("router.max_frame_bytes", defaultMaxFrameBytes)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper leaves durations as strings; normalize them here.
	if v.IsSet("shutdown_grace_period") {
		dur, err := time.ParseDuration(v.GetString("shutdown_grace_period"))
		if err != nil {
			return Config{}, fmt.Errorf("invalid shutdown_grace_period: %w", err)
		}
		cfg.ShutdownGracePeriod = dur
	} else {
		cfg.ShutdownGracePeriod = defaultShutdownGracePeriod
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.Router.SendBuffer <= 0 {
		cfg.Router.SendBuffer = defaultSendBuffer
	}
	if cfg.Router.MaxFrameBytes <= 0 {
		cfg.Router.MaxFrameBytes = defaultMaxFrameBytes
	}

	return cfg, nil
}
