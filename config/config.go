package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Account   AccountConfig   `mapstructure:"account"`
	Translate TranslateConfig `mapstructure:"translate"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // debug / release
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite / postgres
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// PublisherConfig 发布编排参数
type PublisherConfig struct {
	Workers         int           `mapstructure:"workers"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`
	OutboundTimeout time.Duration `mapstructure:"outbound_timeout"`
	OutboundRate    float64       `mapstructure:"outbound_rate"` // 每秒出站请求数
	MinPostSpacing  time.Duration `mapstructure:"min_post_spacing"`
}

// ProxyConfig 代理池参数
type ProxyConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	EMAWeight        float64       `mapstructure:"ema_weight"`
	ProbeURL         string        `mapstructure:"probe_url"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	AutoAssign       bool          `mapstructure:"auto_assign"` // 创建账号时自动分配
}

type AccountConfig struct {
	DefaultPostsLimitPerDay int `mapstructure:"default_posts_limit_per_day"`
}

type TranslateConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type TelemetryConfig struct {
	SentryDSN    string `mapstructure:"sentry_dsn"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load 读取配置：config.yaml + 环境变量（CF_ 前缀）覆盖
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 缺省配置文件允许：全部走默认值与环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "content_factory.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production-min-32-chars")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("publisher.workers", 8)
	v.SetDefault("publisher.retry_attempts", 2)
	v.SetDefault("publisher.retry_backoff", 2*time.Second)
	v.SetDefault("publisher.retry_backoff_max", 60*time.Second)
	v.SetDefault("publisher.outbound_timeout", 30*time.Second)
	v.SetDefault("publisher.outbound_rate", 5.0)
	v.SetDefault("publisher.min_post_spacing", 0)
	v.SetDefault("proxy.failure_threshold", 3)
	v.SetDefault("proxy.ema_weight", 0.2)
	v.SetDefault("proxy.probe_url", "https://httpbin.org/ip")
	v.SetDefault("proxy.probe_timeout", 10*time.Second)
	v.SetDefault("proxy.auto_assign", true)
	v.SetDefault("account.default_posts_limit_per_day", 10)
	v.SetDefault("translate.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("translate.model", "deepseek-chat")
	v.SetDefault("translate.timeout", 30*time.Second)
	v.SetDefault("translate.cache_ttl", 24*time.Hour)
	v.SetDefault("telemetry.service_name", "content-factory")
	v.SetDefault("log.level", "info")
}
