package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Kafka    KafkaConfig     `yaml:"kafka"`
	Redis    RedisConfig     `yaml:"redis"`
	Market   MarketBoxConfig `yaml:"marketbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                       string `yaml:"host"`
	Port                       int    `yaml:"port"`
	OrderImportedTopicName     string `yaml:"order_imported_topic_name"`
	ShipmentRequestedTopicName string `yaml:"shipment_requested_topic_name"`
	ConsumerGroup              string `yaml:"consumer_group"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AccountConfig — подключение к одному аккаунту маркетплейса. Переопределения
// carrier_codes/tracking-поведения опциональны, дефолты живут в клиенте.
type AccountConfig struct {
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	CarrierCodes map[string]string `yaml:"carrier_codes"`
}

type MarketBoxConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	Accounts map[string]AccountConfig `yaml:"accounts"`

	OrderPollIntervalSeconds int    `yaml:"order_poll_interval_seconds"`
	OrderPageSize            int    `yaml:"order_page_size"`
	OrderImportStates        string `yaml:"order_import_states"`
	OrderAutoAccept          bool   `yaml:"order_auto_accept"`
	OrderRateLimitPerMinute  int    `yaml:"order_rate_limit_per_minute"`

	ShipPollIntervalSeconds int `yaml:"ship_poll_interval_seconds"`
	ShipBatchSize           int `yaml:"ship_batch_size"`
	ShipLeaseSeconds        int `yaml:"ship_lease_seconds"`

	OffersCacheTTLSeconds int `yaml:"offers_cache_ttl_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
