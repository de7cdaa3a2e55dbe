package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GetEnv returns the value of key, or fallback when unset or blank.
func GetEnv(key string, fallback ...string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// GetEnvInt parses an integer variable, returning fallback on absence or parse failure.
func GetEnvInt(key string, fallback int) int {
	raw := GetEnv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

// CreateFolder creates the folder and its parents if missing.
func CreateFolder(folderPath string) error {
	return os.MkdirAll(folderPath, 0o755)
}

// GenerateUniqueID returns a random identifier used for request correlation.
func GenerateUniqueID() string {
	return uuid.NewString()
}
