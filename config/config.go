package config

import "time"

// Config 匯總服務的全部設定
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Events   EventsConfig   `mapstructure:"events"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Shop     ShopConfig     `mapstructure:"shop"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// AutoMigrate 啟動時自動執行 migrate up
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig Addr 為空時只使用行程內快取
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// NATSConfig URL 為空時不訂閱金流事件
type NATSConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Buffer  int      `mapstructure:"buffer"`
}

// EventsConfig Publisher 可為 nats、kafka 或 none
type EventsConfig struct {
	Publisher string `mapstructure:"publisher"`
	Producer  string `mapstructure:"producer"`
	Workers   int    `mapstructure:"workers"`
}

type CacheConfig struct {
	Prefix          string        `mapstructure:"prefix"`
	LocalTTL        time.Duration `mapstructure:"local_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type JobsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// CartExpiry cron 表示式
	CartExpiry string        `mapstructure:"cart_expiry"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ShopConfig struct {
	Currency string        `mapstructure:"currency"`
	CartTTL  time.Duration `mapstructure:"cart_ttl"`
}
