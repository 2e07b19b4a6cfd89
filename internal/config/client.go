package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ClientConfig struct {
	Environment string
	API         APIConfig
	Store       ClientStoreConfig
	Routes      RoutesConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type ClientStoreConfig struct {
	Redis   RedisConfig
	Prefix  string
	Channel string
}

// RoutesConfig names the views the session controller navigates between.
type RoutesConfig struct {
	Login           string
	Protected       string
	RefreshInterval time.Duration
}

func LoadClient() (*ClientConfig, error) {
	v := viper.New()
	v.SetConfigName("adminctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.config/hostpanel")

	v.SetEnvPrefix("HOSTPANEL_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setClientDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load client config file: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	return &cfg, nil
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.baseurl", "http://127.0.0.1:8080")
	v.SetDefault("api.timeout", "10s")

	v.SetDefault("store.redis.addr", "127.0.0.1:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 1)
	v.SetDefault("store.prefix", "hostpanel:client:")
	v.SetDefault("store.channel", "hostpanel:client:changes")

	v.SetDefault("routes.login", "/login")
	v.SetDefault("routes.protected", "/admin")
	v.SetDefault("routes.refreshinterval", "5m")
}
