// Package config предоставляет структуры и функцию для парсинга и загрузки конфига.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек бота и сопутствующих сервисов.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	DownloadDir             string `yaml:"download_dir" env:"DOWNLOAD_DIR" env-default:"downloads"`
	Telegram                `yaml:"telegram"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	AdminServer             `yaml:"admin_server"`
	JWTToken                `yaml:"jwttoken"`
}

// Telegram структура с учётными данными Telegram API и списком администраторов.
type Telegram struct {
	APIID     int     `yaml:"api_id" env:"API_ID"`
	APIHash   string  `yaml:"api_hash" env:"API_HASH"`
	BotToken  string  `yaml:"bot_token" env:"BOT_TOKEN"`
	AdminIDs  []int64 `yaml:"admin_ids" env:"ADMIN_IDS"`
	LogChatID int64   `yaml:"log_chat_id" env:"LOG_CHAT_ID"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// AdminServer структура для настройки администраторского HTTP-сервера.
type AdminServer struct {
	AddressHTTP       string        `yaml:"addresshttp" env:"ADMIN_HTTP_ADDRESS" env-default:"localhost:8085"`
	TimeoutHTTP       time.Duration `yaml:"timeouthttp" env-default:"4s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env-default:"60s"`
	AdminName         string        `yaml:"admin_name" env:"ADMIN_NAME" env-default:"admin"`
	AdminPasswordHash string        `yaml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH"`
}

// JWTToken структура для работы с jwt-токеном администраторской панели.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
