// Package config provides environment variable helpers used across the backend.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the first non-empty value among the given keys.
func lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value, true
		}
	}
	return "", false
}

func GetEnv(defaultValue string, keys ...string) string {
	if value, ok := lookup(keys...); ok {
		return value
	}
	return defaultValue
}

// MustEnv fatally exits if none of the env vars is set.
func MustEnv(keys ...string) string {
	if value, ok := lookup(keys...); ok {
		return value
	}
	log.Fatalf("required env var %s not set", strings.Join(keys, " or "))
	return ""
}

func GetEnvInt(defaultValue int, keys ...string) int {
	if value, ok := lookup(keys...); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func GetEnvBool(defaultValue bool, keys ...string) bool {
	if value, ok := lookup(keys...); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func GetEnvDuration(defaultValue time.Duration, keys ...string) time.Duration {
	if value, ok := lookup(keys...); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are interpreted as seconds.
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// GetEnvSlice parses a comma-separated env var into a string slice.
func GetEnvSlice(defaultValue []string, keys ...string) []string {
	if value, ok := lookup(keys...); ok {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}
