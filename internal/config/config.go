package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	Port       int
	DBURL      string
	DBMaxConns int

	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int

	// bootstrap admin, created on start up when missing
	AdminEmail    string
	AdminPassword string
	AdminName     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Mail MailConfig

	// recipients of every project/task/post alert email
	AdminAlertEmails []string

	UploadDir      string
	MaxUploadBytes int64

	CORSOrigins  []string
	OTelEndpoint string
	BaseURL      string

	PasswordResetTTLMinutes int
}

type MailConfig struct {
	Backend      string // "console" | "smtp"
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPTLS      string // "opportunistic" | "mandatory" | "none"
	From         string
	Timeout      time.Duration
}

func Load() Config {
	// a missing .env is fine, real deployments use the environment
	_ = godotenv.Load()

	return Config{
		Env:        getEnv("APP_ENV", "dev"),
		Port:       getEnvInt("PORT", 8080),
		DBURL:      buildDBURL(),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "admin"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Mail: MailConfig{
			Backend:      strings.ToLower(getEnv("MAIL_BACKEND", "console")),
			SMTPHost:     getEnv("MAIL_SMTP_HOST", ""),
			SMTPPort:     getEnvInt("MAIL_SMTP_PORT", 587),
			SMTPUser:     getEnv("MAIL_SMTP_USER", ""),
			SMTPPassword: getEnv("MAIL_SMTP_PASSWORD", ""),
			SMTPTLS:      getEnv("MAIL_SMTP_TLS", "opportunistic"),
			From:         getEnv("MAIL_FROM", "InsightHub <no-reply@example.com>"),
			Timeout:      time.Duration(getEnvInt("MAIL_TIMEOUT_MS", 3000)) * time.Millisecond,
		},

		AdminAlertEmails: ParseList(os.Getenv("ADMIN_ALERT_EMAILS")),

		UploadDir:      getEnv("UPLOAD_DIR", "media"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		CORSOrigins:  ParseList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		BaseURL:      strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),

		PasswordResetTTLMinutes: getEnvInt("PASSWORD_RESET_TTL_MINUTES", 60),
	}
}

// ParseList splits a comma separated value, trimming entries and dropping empty ones.
func ParseList(raw string) []string {
	out := []string{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "insighthub")
	pass := getEnv("DB_PASSWORD", "insighthub")
	name := getEnv("DB_NAME", "insighthub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not a number, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}
