package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogDir   string
	LogLevel string

	SandboxURL     string
	SandboxTimeout time.Duration

	ContestScanInterval  time.Duration
	ContestStartWindow   time.Duration
	ContestScanLockKey   string
	PendingSweepInterval time.Duration
	PendingTTL           time.Duration
	NotifyDedupRetention time.Duration
	PendingStore         string // "memory" or "redis"
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "codejudge_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LogDir:        getEnv("LOG_DIR", "logs"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		SandboxURL:     getEnv("SANDBOX_URL", "http://localhost:2000/api/v2/execute"),
		SandboxTimeout: getEnvAsDuration("SANDBOX_TIMEOUT", 10*time.Second),

		ContestScanInterval:  getEnvAsDuration("CONTEST_SCAN_INTERVAL", 10*time.Second),
		ContestStartWindow:   getEnvAsDuration("CONTEST_START_WINDOW", 30*time.Second),
		ContestScanLockKey:   getEnv("CONTEST_SCAN_LOCK_KEY", "contest_scan_lock"),
		PendingSweepInterval: getEnvAsDuration("PENDING_SWEEP_INTERVAL", 5*time.Minute),
		PendingTTL:           getEnvAsDuration("PENDING_TTL", time.Hour),
		NotifyDedupRetention: getEnvAsDuration("NOTIFY_DEDUP_RETENTION", 24*time.Hour),
		PendingStore:         getEnv("PENDING_STORE", "memory"),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
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

// getEnvAsDuration accepts Go duration strings ("10s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return fallback
}
