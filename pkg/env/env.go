// Package env reads process environment values that live outside the
// envconfig-managed Config, such as log format and host identity.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// First returns the first non-blank value among keys, in order.
func First(keys ...string) (string, bool) {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val, true
		}
	}
	return "", false
}
