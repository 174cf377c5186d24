package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "WS_ROUTER"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Router RouterConfig `mapstructure:"router"`
	Broker BrokerConfig `mapstructure:"broker"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	WSPath          string        `mapstructure:"ws_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// WriteWait bounds one WebSocket frame write.
	WriteWait time.Duration `mapstructure:"write_wait"`
	// PongWait is how long a silent WebSocket peer stays registered.
	PongWait time.Duration `mapstructure:"pong_wait"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	// Enabled installs the applications gate; otherwise every open and send is allowed.
	Enabled bool `mapstructure:"enabled"`
	// AuthorizeOpen is the server-wide default open policy.
	AuthorizeOpen    bool                `mapstructure:"authorize_open"`
	ApplicationsFile string              `mapstructure:"applications_file"`
	Applications     []ApplicationConfig `mapstructure:"applications"`
}

type RouterConfig struct {
	SendTimeout         time.Duration `mapstructure:"send_timeout"`
	SendBuffer          int           `mapstructure:"send_buffer"`
	FanoutWorkers       int           `mapstructure:"fanout_workers"`
	TagsParam           string        `mapstructure:"tags_param"`
	TagsCacheSize       int           `mapstructure:"tags_cache_size"`
	ExpectedConnections int           `mapstructure:"expected_connections"`
	MaxMessageBytes     int64         `mapstructure:"max_message_bytes"`
	// ParseMessages enables the structured message parser for non-string payloads.
	ParseMessages bool `mapstructure:"parse_messages"`
}

type BrokerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Topic   string `mapstructure:"topic"`
}

// Default returns the configuration used when no file or environment overrides apply.
func Default() *Config {
	cfg, _ := load(viper.New())
	return cfg
}

// LoadConfig reads an optional YAML file and WS_ROUTER_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.write_wait", 10*time.Second)
	v.SetDefault("server.pong_wait", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.authorize_open", true)
	v.SetDefault("auth.applications_file", "")

	v.SetDefault("router.send_timeout", 500*time.Millisecond)
	v.SetDefault("router.send_buffer", 256)
	v.SetDefault("router.fanout_workers", 32)
	v.SetDefault("router.tags_param", "tags")
	v.SetDefault("router.tags_cache_size", 1024)
	v.SetDefault("router.expected_connections", 1024)
	v.SetDefault("router.max_message_bytes", 1<<20)
	v.SetDefault("router.parse_messages", false)

	v.SetDefault("broker.enabled", false)
	v.SetDefault("broker.url", "")
	v.SetDefault("broker.topic", "ws_router.requests")
}
