// config реализует конфигурацию content-сервиса: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	Limits    LimitsConfig    `yaml:"limits"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Auth      AuthConfig      `yaml:"auth"`
	Sentinel  SentinelConfig  `yaml:"sentinel"`
	Hash      HashConfig      `yaml:"hash"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// HTTPConfig — REST API, health и metrics на одном листенере.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"3000"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api"`
}

// GRPCConfig — сетевые настройки gRPC-сервера (health).
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50055"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// DBConfig — настройки подключения к MongoDB.
// Для транзакций требуется replica set (например, ?replicaSet=rs0).
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — кэш категорий. Пустой URL отключает кэш.
type RedisConfig struct {
	URL    string        `yaml:"url" env:"REDIS_URL"`
	Prefix string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"content:category:"`
	TTL    time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"5m"`
}

// LimitsConfig — лимиты постраничной выдачи.
type LimitsConfig struct {
	// limit=0 -> берём Default; верхняя граница — Max.
	Default int64 `yaml:"default" env:"DEFAULT_LIMIT" env-default:"10"`
	Max     int64 `yaml:"max"     env:"MAX_LIMIT"     env-default:"100"`
}

// MonitorConfig — порог медленных операций хранилища.
type MonitorConfig struct {
	SlowThreshold time.Duration `yaml:"slow_threshold" env:"SLOW_THRESHOLD" env-default:"100ms"`
}

// TimeoutConfig — сервисные таймауты (общий дедлайн обработки запроса).
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE" env-default:"5s"`
}

// AuthConfig — проверка admin-токенов (HS256). Пустой секрет отключает /admin маршруты.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"ISSUER" env-default:"content-service"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"15m"`
}

// SentinelConfig — служебный пользователь, которому переходят посты удалённых авторов.
type SentinelConfig struct {
	Username string `yaml:"username" env:"SENTINEL_USERNAME" env-default:"deleted"`
	Email    string `yaml:"email" env:"SENTINEL_EMAIL" env-default:"deleted@system.com"`
}

// HashConfig — стоимость bcrypt.
type HashConfig struct {
	Cost int `yaml:"cost" env:"HASH_COST" env-default:"10"`
}

// TelemetryConfig — экспорт трейсов в Jaeger. Пустой URL — no-op провайдер.
type TelemetryConfig struct {
	JaegerURL   string `yaml:"jaeger_url" env:"JAEGER_URL"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME" env-default:"content-service"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	switch {
	case path != "":
		if err := readFile(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := readFile("local.yaml"); err != nil {
				return nil, err
			}

			break
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}

	if c.Limits.Default <= 0 {
		return fmt.Errorf("limits.default must be > 0")
	}

	if c.Limits.Max <= 0 {
		return fmt.Errorf("limits.max must be > 0")
	}

	if c.Limits.Default > c.Limits.Max {
		return fmt.Errorf("limits.default must be <= limits.max")
	}

	if c.Monitor.SlowThreshold <= 0 {
		return fmt.Errorf("monitor.slow_threshold must be > 0")
	}

	if c.Timeouts.Service <= 0 {
		return fmt.Errorf("timeouts.service must be > 0")
	}

	if c.Redis.URL != "" && c.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be > 0")
	}

	if c.Hash.Cost < 4 || c.Hash.Cost > 31 {
		return fmt.Errorf("hash.cost must be within [4, 31]")
	}

	if strings.TrimSpace(c.Sentinel.Username) == "" || strings.TrimSpace(c.Sentinel.Email) == "" {
		return fmt.Errorf("sentinel.username and sentinel.email are required")
	}

	if c.Auth.JWTSecret != "" && c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0")
	}

	if c.HTTP.BasePath != "" && !strings.HasPrefix(c.HTTP.BasePath, "/") {
		return fmt.Errorf("http.base_path must start with /")
	}

	return nil
}
