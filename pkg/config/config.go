package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultJWTSecret = "dev_secret"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Salary   SalaryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	// ConnMaxLifetime recycles pooled connections after this age.
	ConnMaxLifetime time.Duration
	// ConnectRetries is how many extra pings are attempted at startup.
	ConnectRetries int
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SalaryConfig tunes the course session salary engine.
type SalaryConfig struct {
	CacheEnabled      bool
	SummaryCacheTTL   time.Duration
	BatchMaxDays      int
	WorkerConcurrency int
	WorkerRetries     int // 0 disables retries
}

// Load reads .env (optional) and the process environment. Environment values win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.JWT.Secret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be changed in production")
	}
	if c.Salary.WorkerRetries < 0 {
		return errors.New("config: RECALC_WORKER_RETRIES must not be negative")
	}
	return nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database:  databaseFromViper(v),
		Redis:     redisFromViper(v),
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Issuer:     v.GetString("JWT_ISSUER"),
			Expiration: durationOr(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		},
		CORS: CORSConfig{AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS"))},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Salary: salaryFromViper(v),
	}
}

func databaseFromViper(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: durationOr(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		ConnectRetries:  v.GetInt("DB_CONNECT_RETRIES"),
	}
}

func redisFromViper(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Host:         v.GetString("REDIS_HOST"),
		Port:         v.GetInt("REDIS_PORT"),
		Password:     v.GetString("REDIS_PASSWORD"),
		DB:           v.GetInt("REDIS_DB"),
		PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout:  durationOr(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
		ReadTimeout:  durationOr(v.GetString("REDIS_READ_TIMEOUT"), time.Second),
		WriteTimeout: durationOr(v.GetString("REDIS_WRITE_TIMEOUT"), time.Second),
	}
}

func salaryFromViper(v *viper.Viper) SalaryConfig {
	return SalaryConfig{
		CacheEnabled:      v.GetBool("ENABLE_SALARY_CACHE"),
		SummaryCacheTTL:   durationOr(v.GetString("SALARY_SUMMARY_CACHE_TTL"), 5*time.Minute),
		BatchMaxDays:      positiveOr(v.GetInt("BATCH_MAX_DAYS"), 366),
		WorkerConcurrency: positiveOr(v.GetInt("RECALC_WORKER_CONCURRENCY"), 1),
		WorkerRetries:     v.GetInt("RECALC_WORKER_RETRIES"),
	}
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"ENV":        EnvDevelopment,
		"PORT":       8080,
		"API_PREFIX": "/api/v1",

		"DB_HOST":              "localhost",
		"DB_PORT":              5432,
		"DB_USER":              "postgres",
		"DB_PASSWORD":          "postgres",
		"DB_NAME":              "student_affairs",
		"DB_SSL_MODE":          "disable",
		"DB_MAX_OPEN_CONNS":    10,
		"DB_MAX_IDLE_CONNS":    5,
		"DB_CONN_MAX_LIFETIME": "1h",
		"DB_CONNECT_RETRIES":   3,

		"REDIS_HOST":          "localhost",
		"REDIS_PORT":          6379,
		"REDIS_PASSWORD":      "",
		"REDIS_DB":            0,
		"REDIS_POOL_SIZE":     10,
		"REDIS_DIAL_TIMEOUT":  "5s",
		"REDIS_READ_TIMEOUT":  "1s",
		"REDIS_WRITE_TIMEOUT": "1s",

		"JWT_SECRET":     defaultJWTSecret,
		"JWT_ISSUER":     "student-affairs-management",
		"JWT_EXPIRATION": "24h",

		"ALLOWED_ORIGINS": "",
		"LOG_LEVEL":       "info",
		"LOG_FORMAT":      "json",

		"ENABLE_SALARY_CACHE":       false,
		"SALARY_SUMMARY_CACHE_TTL":  "5m",
		"BATCH_MAX_DAYS":            366,
		"RECALC_WORKER_CONCURRENCY": 1,
		"RECALC_WORKER_RETRIES":     3,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// durationOr parses raw, falling back on empty or malformed input.
func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func positiveOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

// splitList splits a comma separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
