package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultTimeoutSec = 10

// Config holds the application configuration.
type Config struct {
	ServerURL  string
	StreamName string
	// Source, when set, is registered as StreamName before playback.
	Source        string
	AnswerTimeout time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	serverURL := os.Getenv("GO2RTC_URL")
	if serverURL == "" {
		return nil, fmt.Errorf("GO2RTC_URL environment variable is required")
	}

	stream := os.Getenv("GO2RTC_STREAM")
	if stream == "" {
		return nil, fmt.Errorf("GO2RTC_STREAM environment variable is required")
	}

	timeoutSec := defaultTimeoutSec
	if raw := os.Getenv("GO2RTC_TIMEOUT_SEC"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("GO2RTC_TIMEOUT_SEC must be a positive integer")
		}
		timeoutSec = v
	}

	return &Config{
		ServerURL:     serverURL,
		StreamName:    stream,
		Source:        os.Getenv("GO2RTC_SRC"),
		AnswerTimeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}
