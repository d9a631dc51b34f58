package main

import (
	"fmt"
	"os"
)

const defaultSecretEnv = "GITHUB_WEBHOOK_SECRET"

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
