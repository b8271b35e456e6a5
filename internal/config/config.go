package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/config"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/log"
)

type Config struct {
	API       APIConfig
	WebSocket WebSocketConfig
	Identity  IdentityConfig
	Log       log.Config
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WebSocketConfig struct {
	URL              string        `mapstructure:"url"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
}

type IdentityConfig struct {
	Path string `mapstructure:"path"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("api.base_url", "http://localhost:8090")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("websocket.url", "ws://localhost:8090/ws")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.handshake_timeout", "10s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("identity.path", "./config")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-sync")

	// Override from environment
	v.BindEnv("api.base_url", "API_BASE_URL")
	v.BindEnv("websocket.url", "WS_URL")
	v.BindEnv("identity.path", "IDENTITY_PATH")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.API.Timeout = parseDuration(v, "api.timeout", 15*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.HandshakeTimeout = parseDuration(v, "websocket.handshake_timeout", 10*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
