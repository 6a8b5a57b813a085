package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации обеих служб (walletd и console).
type Config struct {
	Gateway  ServerConfig   `mapstructure:"gateway"`
	Console  ServerConfig   `mapstructure:"console"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Surface  SurfaceConfig  `mapstructure:"surface"`
	Executor ExecutorConfig `mapstructure:"executor"`
	History  HistoryConfig  `mapstructure:"history"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (хранилища записей + Pub/Sub).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT консоли.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для Console API
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PublicKey      []byte
	PrivateKey     []byte
}

// SurfaceConfig — откуда оператору открывать страницы одобрения.
type SurfaceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// ExecutorConfig — надежность вызовов ноды: Circuit Breaker, ретраи, лимит.
type ExecutorConfig struct {
	CBMaxRequests  uint32        `mapstructure:"cb_max_requests"`
	CBInterval     time.Duration `mapstructure:"cb_interval"`
	CBTimeout      time.Duration `mapstructure:"cb_timeout"`
	RetryAttempts  uint          `mapstructure:"retry_attempts"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// HistoryConfig — буферизация фоновой записи истории транзакций.
type HistoryConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает файл: GATEWAY_PORT=9000 перекроет gateway.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключи: либо сам PEM в ENV (Docker/K8s), либо файл по пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.metrics_port", 9090)
	v.SetDefault("gateway.read_timeout", 5*time.Second)
	v.SetDefault("gateway.write_timeout", 30*time.Second)
	v.SetDefault("console.port", 8000)
	v.SetDefault("console.read_timeout", 5*time.Second)
	v.SetDefault("console.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("surface.base_url", "http://localhost:8000/approve")
	v.SetDefault("executor.cb_max_requests", 3)
	v.SetDefault("executor.cb_interval", 5*time.Second)
	v.SetDefault("executor.cb_timeout", 30*time.Second)
	// Отправка транзакции не идемпотентна: по умолчанию одна попытка.
	// Поднимать только если нода дедуплицирует по digest.
	v.SetDefault("executor.retry_attempts", 1)
	v.SetDefault("executor.call_timeout", 10*time.Second)
	v.SetDefault("executor.rate_per_second", 100)
	v.SetDefault("executor.rate_burst", 20)
	v.SetDefault("history.buffer_size", 10000)
	v.SetDefault("history.batch_size", 100)
	v.SetDefault("history.flush_interval", 500*time.Millisecond)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource — универсальный хелпер: ключ из ENV либо из файла.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
