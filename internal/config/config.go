package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Logger        LoggerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Dispatcher    DispatcherConfig
	Backoff       BackoffConfig
	Proxy         ProxyConfig
	Broker        BrokerConfig
	Queue         QueueConfig
	TTL           TTLConfig
	StateDeadline StateDeadlineConfig
	URLNormalize  URLNormalizeConfig
	Minio         MinioConfig
}

type ServerConfig struct {
	Port string
}

type LoggerConfig struct {
	Mode       string
	Level      string
	Path       string
	MaxSize    int `mapstructure:"max_size"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAge     int `mapstructure:"max_age"`
	Compress   bool
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DispatcherConfig governs the scheduler loop cadence.
//
// Interval accepts either a plain Go duration ("10s") or, when CronExpr is
// set, a cron expression is used to compute successive tick times instead.
type DispatcherConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	CronExpr  string        `mapstructure:"cron_expr"`
	BatchSize int           `mapstructure:"batch_size"`
}

// BackoffConfig parameterizes the retry delay curve: base * 2^(n-1), capped.
type BackoffConfig struct {
	Base time.Duration `mapstructure:"base"`
	Cap  time.Duration `mapstructure:"cap"`
}

type ProxyConfig struct {
	BindingFailureThreshold int `mapstructure:"binding_failure_threshold"`
	GlobalFailureThreshold  int `mapstructure:"global_failure_threshold"`
}

type BrokerConfig struct {
	Prefetch int `mapstructure:"prefetch"`
}

type QueueConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

type TTLConfig struct {
	Work     time.Duration `mapstructure:"work"`
	Priority time.Duration `mapstructure:"priority"`
}

// StateDeadlineConfig maps a non-terminal state name to its lease TTL.
type StateDeadlineConfig struct {
	Queued       time.Duration `mapstructure:"queued"`
	Crawling     time.Duration `mapstructure:"crawling"`
	QueuedParse  time.Duration `mapstructure:"queued_parse"`
	Parsing      time.Duration `mapstructure:"parsing"`
}

type URLNormalizeConfig struct {
	StripTrackingParams bool     `mapstructure:"strip_tracking_params"`
	ExtraTrackingParams []string `mapstructure:"extra_tracking_params"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// Cfg holds the process-wide configuration once LoadConfig has run.
var Cfg *Config

// LoadConfig reads ./internal/config/config.yaml, applying defaults for any
// option the file omits.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./internal/config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	Cfg = &cfg
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("dispatcher.interval", 10*time.Second)
	viper.SetDefault("dispatcher.batch_size", 100)
	viper.SetDefault("backoff.base", 30*time.Second)
	viper.SetDefault("backoff.cap", time.Hour)
	viper.SetDefault("proxy.binding_failure_threshold", 5)
	viper.SetDefault("proxy.global_failure_threshold", 10)
	viper.SetDefault("broker.prefetch", 10)
	viper.SetDefault("queue.max_length", 100000)
	viper.SetDefault("ttl.work", 24*time.Hour)
	viper.SetDefault("ttl.priority", time.Hour)
	viper.SetDefault("state_deadline.queued", 10*time.Minute)
	viper.SetDefault("state_deadline.crawling", 5*time.Minute)
	viper.SetDefault("state_deadline.queued_parse", 10*time.Minute)
	viper.SetDefault("state_deadline.parsing", 2*time.Minute)
	viper.SetDefault("url_normalize.strip_tracking_params", true)
}
