package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs from the environment. It is
// loaded once in main and handed to component constructors explicitly.
type Config struct {
	Addr   string
	DBPath string
	WebDir string

	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int
}

const (
	defaultAddr       = ":8100"
	defaultDBPath     = "agent-platform.db"
	defaultWebDir     = "web"
	defaultBaseURL    = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultModel      = "qwen-turbo"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
)

func Load() (Config, error) {
	// A .env file is optional; real environment variables win either way.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	c := Config{
		Addr:          getEnv("ADDR", defaultAddr),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		WebDir:        getEnv("WEB_DIR", defaultWebDir),
		LLMBaseURL:    getEnv("LLM_API_BASE_URL", defaultBaseURL),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		LLMModel:      getEnv("LLM_MODEL", defaultModel),
		LLMTimeout:    defaultTimeout,
		LLMMaxRetries: defaultMaxRetries,
	}

	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS %q", v)
		}
		c.LLMTimeout = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid LLM_MAX_RETRIES %q", v)
		}
		c.LLMMaxRetries = n
	}

	if c.LLMBaseURL == "" {
		return Config{}, fmt.Errorf("LLM_API_BASE_URL is required")
	}
	if c.LLMModel == "" {
		return Config{}, fmt.Errorf("LLM_MODEL is required")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
