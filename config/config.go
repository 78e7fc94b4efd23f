package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	DBName    string
	JWTKey    string
	SaltRound int

	EmailSender string
	Password    string // SMTP Password

	CertificateWebhookURL string // external endpoint notified on certificate issuance

	DBTimeoutSeconds        int    // per-call timeout for store operations
	AnalyticsStalenessMins  int    // max snapshot age before results are flagged stale
	AnalyticsRefreshCron    string // cron expression for the snapshot refresh job
	CertificateCodeAttempts int    // bounded regenerate attempts on code collision
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	// Initialize AppConfig with values from environment variables
	AppConfig = &Config{
		Port:      getEnv("PORT", "3000"),
		DBName:    getEnv("DB_NAME", "lms"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		EmailSender: getEnv("EMAIL_SENDER", ""),
		Password:    getEnv("PASSWORD", ""),

		CertificateWebhookURL: getEnv("CERTIFICATE_WEBHOOK_URL", ""),

		DBTimeoutSeconds:        getEnvInt("DB_TIMEOUT_SECONDS", 10),
		AnalyticsStalenessMins:  getEnvInt("ANALYTICS_STALENESS_MINUTES", 15),
		AnalyticsRefreshCron:    getEnv("ANALYTICS_REFRESH_CRON", "*/10 * * * *"),
		CertificateCodeAttempts: getEnvInt("CERTIFICATE_CODE_ATTEMPTS", 5),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}
