package processor

import (
	"fmt"
	"time"

	"github.com/mulesoft/mule-sub047/errors"
)

// Safe type assertion helpers for processor params decoded from YAML

// GetString safely extracts a string value from a params map
func GetString(params map[string]any, key string, defaultVal string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// GetInt safely extracts an integer value from a params map
func GetInt(params map[string]any, key string, defaultVal int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return defaultVal
}

// GetBool safely extracts a boolean value from a params map
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if val, ok := params[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetDuration extracts a duration given as a Go duration string ("250ms")
func GetDuration(params map[string]any, key string, defaultVal time.Duration) (time.Duration, error) {
	val, ok := params[key]
	if !ok {
		return defaultVal, nil
	}
	s, ok := val.(string)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a duration string, got %T", errors.ErrInvalidConfig, key, val)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, key, err)
	}
	return d, nil
}

// RequireString extracts a mandatory non-empty string
func RequireString(params map[string]any, key string) (string, error) {
	s := GetString(params, key, "")
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", errors.ErrMissingConfig, key)
	}
	return s, nil
}

// HasKey checks if a key exists in the params map
func HasKey(params map[string]any, key string) bool {
	_, ok := params[key]
	return ok
}
