package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	DBType        string
	DBDSN         string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	FileProfiles  string
	FileSleep     string
	RetryAttempts int

	RedisURL string

	AuthMode       string
	AuthToken      string
	AuthServiceURL string
	JWTSecret      string

	WindDownSeconds     int
	PickupThreshold     float64
	PickupDebounce      time.Duration
	SampleInterval      time.Duration
	MotionAxis          string
	DuplicateLogPolicy  string
	RecordInterruptions bool

	VisionAPIKey         string
	ReminderPollInterval time.Duration
}

var (
	cfg  *Config
	once sync.Once
)

func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		cfg = FromEnv()
		if err := cfg.Validate(); err != nil {
			panic("Invalid config: " + err.Error())
		}
	})
	return cfg
}

// FromEnv reads the configuration from the process environment without
// caching or validating it.
func FromEnv() *Config {
	return &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8088"),

		DBType:        getEnv("STORAGE_BACKEND", "file"),
		DBDSN:         getEnv("POSTGRES_DSN", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/fixyoursleep.db"),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "fixyoursleep"),
		FileProfiles:  getEnv("PROFILES_FILE", "data/profiles.json"),
		FileSleep:     getEnv("SLEEP_FILE", "data/sleep_logs.json"),
		RetryAttempts: getEnvInt("STORE_RETRY_ATTEMPTS", 3),

		RedisURL: getEnv("REDIS_URL", ""),

		AuthMode:       getEnv("AUTH_MODE", "local"),
		AuthToken:      getEnv("AUTH_TOKEN", "MOCK-TOKEN"),
		AuthServiceURL: getEnv("AUTH_SERVICE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		WindDownSeconds:     getEnvInt("WINDDOWN_SECONDS", 600),
		PickupThreshold:     getEnvFloat("PICKUP_THRESHOLD", 0.6),
		PickupDebounce:      getEnvDuration("PICKUP_DEBOUNCE", 500*time.Millisecond),
		SampleInterval:      getEnvDuration("SAMPLE_INTERVAL", time.Second),
		MotionAxis:          strings.ToLower(getEnv("MOTION_AXIS", "z")),
		DuplicateLogPolicy:  getEnv("DUPLICATE_LOG_POLICY", "reject"),
		RecordInterruptions: getEnvBool("RECORD_INTERRUPTIONS", false),

		VisionAPIKey:         getEnv("VISION_API_KEY", ""),
		ReminderPollInterval: getEnvDuration("REMINDER_POLL_INTERVAL", 30*time.Second),
	}
}

func (c *Config) Validate() error {
	switch c.DBType {
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORAGE_BACKEND=mongo")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case "file":
		if c.FileProfiles == "" || c.FileSleep == "" {
			return errors.New("File storage requires PROFILES_FILE and SLEEP_FILE to be set")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: file, sqlite, postgres, mongo")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	switch c.AuthMode {
	case "local":
		if c.AuthToken == "" {
			return errors.New("AUTH_TOKEN is required when AUTH_MODE=local")
		}
	case "remote":
		if c.AuthServiceURL == "" {
			return errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return errors.New("AUTH_MODE must be one of: local, remote, jwt")
	}
	if c.WindDownSeconds <= 0 {
		return errors.New("WINDDOWN_SECONDS must be positive")
	}
	if c.PickupThreshold <= 0 {
		return errors.New("PICKUP_THRESHOLD must be positive")
	}
	if c.MotionAxis != "x" && c.MotionAxis != "y" && c.MotionAxis != "z" {
		return errors.New("MOTION_AXIS must be one of: x, y, z")
	}
	if c.DuplicateLogPolicy != "reject" && c.DuplicateLogPolicy != "overwrite" {
		return errors.New("DUPLICATE_LOG_POLICY must be reject or overwrite")
	}
	if c.RetryAttempts < 1 {
		return errors.New("STORE_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}
