package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config конфигурация сервиса, загружается из config.toml
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Logs       LogsConfig       `toml:"logs"`
	Metrics    MetricsConfig    `toml:"metrics"`
	RabbitMQ   RabbitMQConfig   `toml:"rabbitmq"`
	Engine     EngineConfig     `toml:"engine"`
	Dispatcher DispatcherConfig `toml:"dispatcher"`
	Catalog    CatalogConfig    `toml:"catalog"`
}

// ServerConfig настройки HTTP сервера
type ServerConfig struct {
	HTTPPort        int `toml:"http_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// DatabaseConfig настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	DBName          string `toml:"dbname"`
	SSLMode         string `toml:"sslmode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"`
}

// DSN возвращает строку подключения к PostgreSQL
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// LogsConfig настройки логирования
type LogsConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// MetricsConfig настройки prometheus-метрик
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	Path        string `toml:"path"`
}

// RabbitMQConfig настройки подключения к RabbitMQ для публикации outbox-событий
type RabbitMQConfig struct {
	URL        string `toml:"url"`
	Exchange   string `toml:"exchange"`
	RetryCount int    `toml:"retry_count"`
	RetryDelay int    `toml:"retry_delay"` // секунды между попытками подключения
}

// EngineConfig параметры движка слотов и аллокатора.
// Значения ретраев и таймаутов намеренно консервативные и настраиваемые.
type EngineConfig struct {
	SlotGridMinutes          int `toml:"slot_grid_minutes"`            // шаг сетки слотов
	MaxLookaheadDays         int `toml:"max_lookahead_days"`           // максимальная глубина запроса слотов
	ConflictSuggestions      int `toml:"conflict_suggestions"`         // сколько альтернативных слотов возвращать при конфликте
	AllocatorRetries         int `toml:"allocator_retries"`            // повторы при serialization failure
	IdempotencyLockTimeoutMS int `toml:"idempotency_lock_timeout_ms"`  // lock_timeout ожидания advisory lock по ключу идемпотентности
}

// DispatcherConfig настройки диспетчера outbox-событий
type DispatcherConfig struct {
	Enabled       bool `toml:"enabled"`
	PollInterval  int  `toml:"poll_interval"`   // секунды между опросами
	BatchSize     int  `toml:"batch_size"`      // сколько событий забирать за один опрос
	Workers       int  `toml:"workers"`         // количество воркеров публикации
	MaxAttempts   int  `toml:"max_attempts"`    // после скольких неудач событие помечается failed
	BackoffBaseMS int  `toml:"backoff_base_ms"` // база экспоненциального backoff
}

// CatalogConfig настройки клиента CatalogService
type CatalogConfig struct {
	URL     string `toml:"url"`
	Timeout int    `toml:"timeout"` // секунды
}

// Load загружает конфигурацию из toml-файла и валидирует её
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.SlotGridMinutes == 0 {
		c.Engine.SlotGridMinutes = 15
	}
	if c.Engine.MaxLookaheadDays == 0 {
		c.Engine.MaxLookaheadDays = 90
	}
	if c.Engine.ConflictSuggestions == 0 {
		c.Engine.ConflictSuggestions = 3
	}
	if c.Engine.AllocatorRetries == 0 {
		c.Engine.AllocatorRetries = 3
	}
	if c.Engine.IdempotencyLockTimeoutMS == 0 {
		c.Engine.IdempotencyLockTimeoutMS = 5000
	}
	if c.Dispatcher.PollInterval == 0 {
		c.Dispatcher.PollInterval = 2
	}
	if c.Dispatcher.BatchSize == 0 {
		c.Dispatcher.BatchSize = 50
	}
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = 1
	}
	if c.Dispatcher.MaxAttempts == 0 {
		c.Dispatcher.MaxAttempts = 10
	}
	if c.Dispatcher.BackoffBaseMS == 0 {
		c.Dispatcher.BackoffBaseMS = 500
	}
}

func (c *Config) validate() error {
	if c.Server.HTTPPort <= 0 {
		return fmt.Errorf("config: server.http_port must be positive")
	}
	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("config: database.host and database.dbname are required")
	}
	if c.Engine.SlotGridMinutes <= 0 || c.Engine.SlotGridMinutes > 60 {
		return fmt.Errorf("config: engine.slot_grid_minutes must be in (0, 60]")
	}
	if c.Engine.MaxLookaheadDays <= 0 {
		return fmt.Errorf("config: engine.max_lookahead_days must be positive")
	}
	return nil
}
