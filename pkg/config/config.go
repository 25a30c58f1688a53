package config

import "time"

// ChatSync definition chat_sync_service YAML structure
type ChatSync struct {
	Port       string        `mapstructure:"port"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// 輪詢端客戶端建議的拉取間隔（回應 /api/connect 時下發）
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// 單頁訊息上限，fetchSince 超過時截斷，maxSequenceId 仍回真實高水位
	PageLimit int64 `mapstructure:"page_limit"`

	MongoDB    DatabaseConfig `mapstructure:"mongo"`
	Redis      RedisConfig    `mapstructure:"redis"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Kafka      KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ   RabbitConfig   `mapstructure:"rabbit"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// KafkaConfig definition kafka archive topic setting
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ArchiveTopic  string   `mapstructure:"archive_topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// RabbitConfig definition rabbitmq badge exchange setting
type RabbitConfig struct {
	URL           string `mapstructure:"url"`
	BadgeExchange string `mapstructure:"badge_exchange"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
