// Package config предоставляет структуры и функции для загрузки конфигурации сервисов биллинга.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Redis                   RedisConnection `yaml:"redis_connection"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	SMTP                    SMTP            `yaml:"smtp"`
	SES                     SES             `yaml:"ses"`
	Stripe                  Stripe          `yaml:"stripe"`
	Accrual                 Accrual         `yaml:"accrual"`
	Alerts                  Alerts          `yaml:"alerts"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit: запросов в секунду на весь сервер, RateBurst - размер всплеска.
	RateLimit float64 `yaml:"rate_limit" env-default:"20"`
	RateBurst int     `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	Addr        string        `yaml:"addressredis" env:"REDIS_ADDR"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для проверки jwt-токена
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ настройки брокера уведомлений
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP настройки почтового сервера
type SMTP struct {
	Host string `yaml:"host" env:"SMTP_HOST"`
	Port string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User string `yaml:"user" env:"SMTP_USER"`
	Pass string `yaml:"pass" env:"SMTP_PASS"`
}

// SES настройки отправки писем через AWS SES. Если Enabled, SMTP не используется.
type SES struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region" env:"AWS_REGION"`
	FromEmail string `yaml:"from_email"`
}

// Stripe настройки платёжного шлюза
type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `yaml:"currency" env-default:"usd"`
}

// Accrual настройки фонового начисления токенов
type Accrual struct {
	Schedule string        `yaml:"schedule" env-default:"@every 1h"`
	LockTTL  time.Duration `yaml:"lock_ttl" env-default:"10m"`
}

// Alerts настройки оповещений о событиях, требующих ручного вмешательства
type Alerts struct {
	SNSTopicARN string `yaml:"sns_topic_arn" env:"ALERTS_SNS_TOPIC_ARN"`
	Region      string `yaml:"region" env:"AWS_REGION"`
}

// Load читает конфиг из файла path с переопределением из переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает .env (если есть) и конфиг по пути из CONFIG_PATH, завершая процесс при ошибке.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}
