package config

import (
	"fmt"
	"os"
	"path/filepath"
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

	SendBuffer  int           `mapstructure:"send_buffer"`
	IDBudget    time.Duration `mapstructure:"id_budget"`
	JoinRate    float64       `mapstructure:"join_rate"`
	JoinBurst   int           `mapstructure:"join_burst"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	ICEServers  []string      `mapstructure:"ice_servers"`
	OptionsPath string        `mapstructure:"options_path"`

	// Backpressure is kick or drop.
	Backpressure string `mapstructure:"backpressure"`
}

// New returns a viper instance carrying every default. Callers may bind
// flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("config_env", "")
	v.SetDefault("config_dir", "config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "collab-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("id_budget", "1s")
	v.SetDefault("join_rate", 2.0)
	v.SetDefault("join_burst", 5)
	v.SetDefault("redis_addr", "")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("options_path", "")
	v.SetDefault("backpressure", "kick")

	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads config/config.<env>.yaml over the defaults in v. The env comes
// from the config_env key (flag) or CONFIG_ENV, defaulting to dev.
func Load(v *viper.Viper) (*Config, error) {
	env := v.GetString("config_env")
	if env == "" {
		env = os.Getenv("CONFIG_ENV")
	}
	if env == "" {
		env = "dev"
	}
	fileName := filepath.Join(v.GetString("config_dir"), fmt.Sprintf("config.%s.yaml", env))
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Bool("redis", cfg.RedisAddr != "").
		Msg("config ready")
	return &cfg, nil
}
