package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"metargb/media-service/pkg/db"
)

// Config is the media service configuration read from the environment
type Config struct {
	ServiceName string
	GRPCPort    string
	HTTPPort    string
	LogLevel    string

	DB          db.Config
	TablePrefix string
	SchemaCheck bool

	Storage StorageConfig

	ImageSizes     string
	JPEGQuality    int
	ImageMaxPixels int64

	FetchTimeout      time.Duration
	FetchMaxSize      int64
	FetchAllowPrivate bool
	UserAgent         string

	RedisURL string
}

// StorageConfig selects and configures the upload store
type StorageConfig struct {
	Driver       string // local or ftp
	UploadDir    string
	UploadURL    string
	UseYearMonth bool

	FTPHost     string
	FTPPort     string
	FTPUser     string
	FTPPassword string
	FTPBasePath string
}

// LoadEnvFiles loads the first env file found, falling back to .env
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: config.env and .env files not found, using environment variables only")
	}
}

// Load reads env files and returns the resulting configuration
func Load() *Config {
	LoadEnvFiles("config.env", "./config.env", "../config.env", "../../config.env")
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only
func FromEnv() *Config {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "media-service"),
		GRPCPort:    getEnv("GRPC_PORT", "50061"),
		HTTPPort:    getEnv("HTTP_PORT", "8061"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DB: db.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_DATABASE", "metargb_db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnectRetries:  getEnvInt("DB_CONNECT_RETRIES", 5),
		},
		TablePrefix: getEnv("DB_TABLE_PREFIX", "wp_"),
		SchemaCheck: getEnvBool("DB_SCHEMA_CHECK", false),

		Storage: StorageConfig{
			Driver:       strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			UploadDir:    getEnv("UPLOAD_DIR", "storage/app/uploads"),
			UploadURL:    strings.TrimRight(getEnv("UPLOAD_URL", "http://localhost:8061/uploads"), "/"),
			UseYearMonth: getEnvBool("UPLOADS_YEARMONTH", true),
			FTPHost:      getEnv("FTP_HOST", "localhost"),
			FTPPort:      getEnv("FTP_PORT", "21"),
			FTPUser:      getEnv("FTP_USER", ""),
			FTPPassword:  getEnv("FTP_PASSWORD", ""),
			FTPBasePath:  getEnv("FTP_BASE_PATH", "uploads"),
		},

		ImageSizes:     getEnv("IMAGE_SIZES", "thumbnail:150x150:crop,medium:300x300,medium_large:768x0,large:1024x1024"),
		JPEGQuality:    getEnvInt("JPEG_QUALITY", 82),
		ImageMaxPixels: int64(getEnvInt("IMAGE_MAX_PIXELS", 40_000_000)),

		FetchTimeout:      getEnvDuration("IMPORT_TIMEOUT", 30*time.Second),
		FetchMaxSize:      int64(getEnvInt("IMPORT_MAX_BYTES", 32<<20)),
		FetchAllowPrivate: getEnvBool("IMPORT_ALLOW_PRIVATE", false),
		UserAgent:         getEnv("IMPORT_USER_AGENT", "metargb-media-service/1.0"),

		RedisURL: getEnv("REDIS_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid integer for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid boolean for %s: %q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
