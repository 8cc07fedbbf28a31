package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	AppEnv    string
	Port      string
	JWTSecret string
	Debug     bool
	Database  DatabaseConfig
	Solver    SolverConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Quiet    bool // silence SQL logging

	// Embedded PostgreSQL, used when Host is localhost and Password is empty
	EmbeddedDataDir string
	EmbeddedPort    int
	MaxOpenConns    int
}

// SolverConfig describes how the external placement solver is launched
type SolverConfig struct {
	Interpreter string
	ScriptPath  string
	WorkDir     string
	Timeout     time.Duration
	TuningFile  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	timeout, err := time.ParseDuration(getEnv("SOLVER_TIMEOUT", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SOLVER_TIMEOUT: %w", err)
	}

	return &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "3220"),
		JWTSecret: jwtSecret,
		Debug:     getBool("APP_DEBUG", false),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "eckslot"),
			Quiet:    getBool("DB_QUIET", false),

			EmbeddedDataDir: getEnv("PG_EMBEDDED_DATA_DIR", "./db_data"),
			EmbeddedPort:    getInt("PG_EMBEDDED_PORT", 5433),
			MaxOpenConns:    getInt("PG_MAX_OPEN_CONNS", 50),
		},
		Solver: SolverConfig{
			Interpreter: getEnv("SOLVER_INTERPRETER", "python3"),
			ScriptPath:  getEnv("SOLVER_SCRIPT_PATH", "./scripts/solver/optimize_placement.py"),
			WorkDir:     os.Getenv("SOLVER_WORK_DIR"),
			Timeout:     timeout,
			TuningFile:  os.Getenv("SOLVER_TUNING_FILE"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
