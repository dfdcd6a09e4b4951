package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string `validate:"required"`

	JWTSecret string        `validate:"required"`
	JWTExp    time.Duration `validate:"gt=0"`

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string `validate:"required"`

	// Empty RedisAddr runs without Redis: rate limits fall back to an
	// in-process store and the sweeper runs unlocked.
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	UploadDir      string        `validate:"required"`
	MaxUploadBytes int64         `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"gt=0"`
	LoginRateLimit string        `validate:"required"`

	LogLevel string
	LogJSON  bool

	SweepInterval time.Duration `validate:"gte=0"`
	SweepMinAge   time.Duration `validate:"gte=0"`
	RunMigrations bool
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:        getEnv("API_PORT", "5000"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTExp:         time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "notice_board_db"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 5)) << 20,
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		LoginRateLimit: getEnv("LOGIN_RATE_LIMIT", "10-M"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogJSON:        getEnvAsBool("LOG_JSON", false),
		SweepInterval:  getEnvAsDuration("SWEEP_INTERVAL", time.Hour),
		SweepMinAge:    getEnvAsDuration("SWEEP_MIN_AGE", time.Hour),
		RunMigrations:  getEnvAsBool("RUN_MIGRATIONS", true),
	}

	cfg.DBConnStr = getEnv("DATABASE_URL", "")
	if cfg.DBConnStr == "" {
		cfg.DBConnStr = "host=" + cfg.DBHost +
			" port=" + cfg.DBPort +
			" user=" + cfg.DBUser +
			" password=" + cfg.DBPassword +
			" dbname=" + cfg.DBName +
			" sslmode=" + cfg.DBSslMode
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
