package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	CredentialsDriverPostgres = "postgres"
	CredentialsDriverMemory   = "memory"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SecurityConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

type CredentialsConfig struct {
	Driver string
}

// BootstrapConfig describes the superadmin provisioned at startup when absent.
type BootstrapConfig struct {
	Username string
	Email    string
	Password string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Credentials      CredentialsConfig
	Bootstrap        BootstrapConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("HOSTPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwtsecret is required")
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("security.tokenttl must be positive")
	}
	switch c.Credentials.Driver {
	case CredentialsDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres credentials driver")
		}
	case CredentialsDriverMemory:
	default:
		return fmt.Errorf("unknown credentials driver %q", c.Credentials.Driver)
	}
	return nil
}

func decoderOptions(dc *mapstructure.DecoderConfig) {
	dc.TagName = "mapstructure"
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.tokenttl", "24h")
	v.SetDefault("security.loginmaxattempts", 10)
	v.SetDefault("security.loginwindow", "15m")

	v.SetDefault("credentials.driver", CredentialsDriverPostgres)

	v.SetDefault("bootstrap.username", "")
	v.SetDefault("bootstrap.email", "")
	v.SetDefault("bootstrap.password", "")

	v.SetDefault("allowcorsorigins", []string{})
}
