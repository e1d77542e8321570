package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleAfter    time.Duration `mapstructure:"idle_after"`
	// Backpressure is "disconnect" or "drop". With "drop" a slow device keeps
	// its connection but misses the frame and stays stale until the next
	// full state update reaches it.
	Backpressure string `mapstructure:"backpressure"`

	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`

	ProvisionRateLimit    int           `mapstructure:"provision_rate_limit"`
	ProvisionRateInterval time.Duration `mapstructure:"provision_rate_interval"`
	ProvisionTimeout      time.Duration `mapstructure:"provision_timeout"`

	FrontendURL    string `mapstructure:"frontend_url"`
	AllowAnonymous bool   `mapstructure:"allow_anonymous"`
	AdminToken     string `mapstructure:"admin_token"`

	Google  GoogleConfig  `mapstructure:"google"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	CalendarID   string `mapstructure:"calendar_id"`
}

// Enabled reports whether Google sign-in and provisioning can be wired.
func (g GoogleConfig) Enabled() bool { return g.ClientID != "" && g.ClientSecret != "" }

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")

	v.SetDefault("send_buffer", 32)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("idle_after", "2m")
	v.SetDefault("backpressure", "disconnect")

	v.SetDefault("session_idle_ttl", "24h")
	v.SetDefault("sweep_interval", "5m")

	v.SetDefault("provision_rate_limit", 5)
	v.SetDefault("provision_rate_interval", "1m")
	v.SetDefault("provision_timeout", "15s")

	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("allow_anonymous", false)
	v.SetDefault("admin_token", "")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "http://localhost:8080/auth/google/callback")
	v.SetDefault("google.calendar_id", "primary")
	v.SetDefault("metrics.enabled", true)
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Every key can
// be overridden from the environment with the MEETSYNC_ prefix, dots
// replaced by underscores.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("MEETSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Mode == "release" && len(c.Secret) < 32 {
		return errors.New("secret must be at least 32 bytes in release mode")
	}
	if c.PingPeriod <= 0 {
		return errors.New("ping_period must be positive")
	}
	return nil
}
