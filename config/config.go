package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads environment variables from .env unless GO_ENV says otherwise
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

// EnvironmentVariable holds all configuration read from the environment
type EnvironmentVariable struct {
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Payment gateway configuration
	GATEWAY_BASE_URL       string
	GATEWAY_STORE_ID       string
	GATEWAY_STORE_PASSWORD string
	// SMTP configuration
	SMTP_HOST     string
	SMTP_PORT     string
	SMTP_USERNAME string
	SMTP_PASSWORD string
	SMTP_FROM     string
}

// Get reads configuration from the environment, applying defaults for
// anything optional
func Get() (*EnvironmentVariable, error) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	dbSSLMode := os.Getenv("DB_SSL_MODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	gatewayBaseURL := os.Getenv("GATEWAY_BASE_URL")
	if gatewayBaseURL == "" {
		gatewayBaseURL = "https://sandbox.sslcommerz.com"
	}

	envVariables := &EnvironmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  dbSSLMode,
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Payment gateway
		GATEWAY_BASE_URL:       gatewayBaseURL,
		GATEWAY_STORE_ID:       os.Getenv("GATEWAY_STORE_ID"),
		GATEWAY_STORE_PASSWORD: os.Getenv("GATEWAY_STORE_PASSWORD"),
		// SMTP
		SMTP_HOST:     os.Getenv("SMTP_HOST"),
		SMTP_PORT:     os.Getenv("SMTP_PORT"),
		SMTP_USERNAME: os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     os.Getenv("SMTP_FROM"),
	}

	return envVariables, nil
}

// DSN builds the PostgreSQL connection string from the loaded variables
func (e *EnvironmentVariable) DSN() string {
	return "host=" + e.DB_HOST +
		" user=" + e.DB_USER_NAME +
		" password=" + e.DB_PASSWORD +
		" dbname=" + e.DB_NAME +
		" port=" + e.DB_PORT +
		" sslmode=" + e.DB_SSL_MODE +
		" TimeZone=UTC"
}
