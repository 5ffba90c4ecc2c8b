// Package config loads environment-backed settings shared by the CLI
// commands.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotenv pulls a local .env file into the process environment.
// Missing files are fine; system environment variables still apply.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}
}

// GetEnv reads a string environment variable with a default.
func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// GetEnvInt reads an integer environment variable with a default.
func GetEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetEnvBool reads a boolean environment variable with a default.
func GetEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}
