package config

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Gateway  GatewayConfig
	Throttle ThrottleConfig
	Defaults DefaultsConfig
	Runtime  RuntimeConfig
}

type GatewayConfig struct {
	Host           string
	Port           int
	ClientID       int64
	Account        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

type ThrottleConfig struct {
	Limit    int
	Interval time.Duration
}

// DefaultsConfig controls how protocol "no value" sentinels render.
type DefaultsConfig struct {
	EmptyPrice float64
	EmptySize  float64
	Unset      float64
	Timezone   *time.Location
}

type RuntimeConfig struct {
	AdvisoryCodes []int
	Log           LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func Load() (*Config, error) {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	viper.ReadInConfig()

	viper.SetDefault("gateway.host", "127.0.0.1")
	viper.SetDefault("gateway.port", 4002)
	viper.SetDefault("gateway.client_id", 1)
	viper.SetDefault("gateway.connect_timeout", "10s")
	viper.SetDefault("gateway.request_timeout", "30s")
	viper.SetDefault("throttle.limit", 45)
	viper.SetDefault("throttle.interval", "1s")
	viper.SetDefault("defaults.empty_price", "nan")
	viper.SetDefault("defaults.empty_size", "nan")
	viper.SetDefault("defaults.unset", "nan")
	viper.SetDefault("defaults.timezone", "UTC")
	viper.SetDefault("runtime.log.level", "info")

	cfg := &Config{}

	cfg.Gateway = GatewayConfig{
		Host:           envSub("gateway.host"),
		Port:           viper.GetInt("gateway.port"),
		ClientID:       viper.GetInt64("gateway.client_id"),
		Account:        envSub("gateway.account"),
		ConnectTimeout: viper.GetDuration("gateway.connect_timeout"),
		RequestTimeout: viper.GetDuration("gateway.request_timeout"),
	}

	cfg.Throttle = ThrottleConfig{
		Limit:    viper.GetInt("throttle.limit"),
		Interval: viper.GetDuration("throttle.interval"),
	}

	var err error
	cfg.Defaults.EmptyPrice, err = sentinel(viper.GetString("defaults.empty_price"))
	if err != nil {
		return nil, fmt.Errorf("defaults.empty_price: %w", err)
	}
	cfg.Defaults.EmptySize, err = sentinel(viper.GetString("defaults.empty_size"))
	if err != nil {
		return nil, fmt.Errorf("defaults.empty_size: %w", err)
	}
	cfg.Defaults.Unset, err = sentinel(viper.GetString("defaults.unset"))
	if err != nil {
		return nil, fmt.Errorf("defaults.unset: %w", err)
	}
	cfg.Defaults.Timezone, err = time.LoadLocation(viper.GetString("defaults.timezone"))
	if err != nil {
		return nil, fmt.Errorf("defaults.timezone: %w", err)
	}

	cfg.Runtime = RuntimeConfig{
		AdvisoryCodes: viper.GetIntSlice("runtime.advisory_codes"),
		Log: LogConfig{
			Level:      viper.GetString("runtime.log.level"),
			Format:     viper.GetString("runtime.log.format"),
			File:       viper.GetString("runtime.log.file"),
			MaxSize:    viper.GetInt("runtime.log.max_size"),
			MaxBackups: viper.GetInt("runtime.log.max_backups"),
			MaxAge:     viper.GetInt("runtime.log.max_age"),
			Compress:   viper.GetBool("runtime.log.compress"),
		},
	}

	return cfg, nil
}

// sentinel parses a sentinel value; "nan" selects the NaN representation.
func sentinel(s string) (float64, error) {
	if strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func envSub(key string) string {
	val := viper.GetString(key)
	if val == "" {
		return ""
	}

	re := regexp.MustCompile(`\$\{(\w+)\}`)
	return re.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
