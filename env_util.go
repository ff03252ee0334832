package fintrack

import "os"

// GetEnvOrDefault reads key from the environment. An unset or empty
// variable yields defaultValue.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
