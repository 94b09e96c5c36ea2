package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DatabaseURL       string
	JWTSecret         string
	JWTTTL            time.Duration
	AllowOrigins      []string
	LogstashTCPAddr   string
	MinIOEndpoint     string
	MinIOAccessKey    string
	MinIOSecretKey    string
	MinIOUseSSL       bool
	ImportBucket      string
	ImportMaxBytes    int64
	ImportMaxRows     int
	ImportSyncRows    int
	ImportWorkers     int
	ImportQueueSize   int
	ExportMaxRows     int
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	SMTPSkipTLSVerify bool
	SeedAdminEmail    string
	SeedAdminPassword string
	// Admin password policy; only new accounts are checked against it.
	PasswordMinLength      int
	PasswordRequireClasses bool
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	return Config{
		Port:              getenv("PORT", "8080"),
		DatabaseURL:       must("DATABASE_URL"),
		JWTSecret:         must("JWT_SECRET"),
		JWTTTL:            getDuration("JWT_TTL", 12*time.Hour),
		AllowOrigins:      splitAndTrim(getenv("ALLOW_ORIGINS", "*")),
		LogstashTCPAddr:   getenv("LOGSTASH_TCP_ADDR", ""),
		MinIOEndpoint:     must("MINIO_ENDPOINT"),
		MinIOAccessKey:    must("MINIO_ACCESS_KEY"),
		MinIOSecretKey:    must("MINIO_SECRET_KEY"),
		MinIOUseSSL:       getenv("MINIO_USE_SSL", "false") == "true",
		ImportBucket:      getenv("IMPORT_BUCKET", "agri-imports"),
		ImportMaxBytes:    int64(getInt("IMPORT_MAX_BYTES", 10*1024*1024)),
		ImportMaxRows:     getInt("IMPORT_MAX_ROWS", 20000),
		ImportSyncRows:    getInt("IMPORT_SYNC_ROWS", 50),
		ImportWorkers:     getInt("IMPORT_WORKERS", 2),
		ImportQueueSize:   getInt("IMPORT_QUEUE_SIZE", 32),
		ExportMaxRows:     getInt("EXPORT_MAX_ROWS", 100000),
		SMTPHost:          getenv("SMTP_HOST", ""),
		SMTPPort:          getInt("SMTP_PORT", 587),
		SMTPUsername:      getenv("SMTP_USERNAME", ""),
		SMTPPassword:      getenv("SMTP_PASSWORD", ""),
		SMTPFrom:          getenv("SMTP_FROM", ""),
		SMTPSkipTLSVerify: getenv("SMTP_SKIP_TLS_VERIFY", "false") == "true",
		SeedAdminEmail:    getenv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword: getenv("SEED_ADMIN_PASSWORD", ""),

		PasswordMinLength:      getInt("PASSWORD_MIN_LENGTH", 12),
		PasswordRequireClasses: getenv("PASSWORD_REQUIRE_CLASSES", "true") == "true",
	}
}

// ClientConfig feeds cmd/bulkctl.
type ClientConfig struct {
	APIURL       string
	APIToken     string
	SuperAdmin   bool
	DownloadDir  string
	PollInterval time.Duration
	PollAttempts int
	HTTPTimeout  time.Duration
}

func LoadClient() ClientConfig {
	_ = godotenv.Load()

	return ClientConfig{
		APIURL:       getenv("AGRI_API_URL", "http://localhost:8080"),
		APIToken:     getenv("AGRI_API_TOKEN", ""),
		SuperAdmin:   getenv("AGRI_SUPER_ADMIN", "false") == "true",
		DownloadDir:  getenv("AGRI_DOWNLOAD_DIR", "."),
		PollInterval: getDuration("AGRI_POLL_INTERVAL", 10*time.Second),
		PollAttempts: getInt("AGRI_POLL_ATTEMPTS", 30),
		HTTPTimeout:  getDuration("AGRI_HTTP_TIMEOUT", 60*time.Second),
	}
}

func splitAndTrim(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getInt(k string, d int) int {
	if v, err := strconv.Atoi(getenv(k, "")); err == nil && v > 0 {
		return v
	}
	return d
}

func getDuration(k string, d time.Duration) time.Duration {
	if v, err := time.ParseDuration(getenv(k, "")); err == nil && v > 0 {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
