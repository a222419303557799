package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration derived from environment variables
// layered over an optional YAML config file.
type Config struct {
	HTTPPort      string
	MeetingsDir   string
	InboxDir      string
	DBPath        string
	WorkerCount   int
	JobQueueSize  int
	JobTimeoutSec int
	EnableWatcher bool
	StrictConfig  bool
	LLM           LLMConfig
}

type fileConfig struct {
	MeetingsDir string    `json:"meetings_dir" yaml:"meetings_dir"`
	InboxDir    string    `json:"inbox_dir" yaml:"inbox_dir"`
	HTTPPort    string    `json:"http_port" yaml:"http_port"`
	DBPath      string    `json:"db_path" yaml:"db_path"`
	LLM         LLMConfig `json:"llm" yaml:"llm"`
}

const (
	defaultPort          = ":8000"
	defaultMeetingsDir   = "runtime/meetings"
	defaultInboxDir      = "runtime/inbox"
	defaultDBFile        = "ingests.db"
	minQueueSize         = 1
	defaultQueueSize     = 64
	maxQueueSize         = 1024
	defaultWorkerCount   = 2
	defaultJobTimeoutSec = 300
)

// Load reads configuration from the environment and applies sane defaults.
// A .env file, if present, fills in variables that are not already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		WorkerCount:   defaultWorkerCount,
		JobQueueSize:  defaultQueueSize,
		JobTimeoutSec: defaultJobTimeoutSec,
		EnableWatcher: parseBoolEnvDefault("ENABLE_WATCHER", true),
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		if !errors.Is(fileErr, os.ErrNotExist) {
			log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
		}
	}

	cfg.MeetingsDir = firstNonEmpty(os.Getenv("MEETINGS_DIR"), fileCfg.MeetingsDir, defaultMeetingsDir)
	cfg.InboxDir = firstNonEmpty(os.Getenv("INBOX_DIR"), fileCfg.InboxDir, defaultInboxDir)
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	} else if fileCfg.DBPath != "" {
		cfg.DBPath = fileCfg.DBPath
	} else {
		cfg.DBPath = filepath.Join(cfg.MeetingsDir, defaultDBFile)
	}

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), os.Getenv("PORT"), fileCfg.HTTPPort, defaultPort)
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Printf("invalid WORKER_COUNT=%q, using default %d", v, defaultWorkerCount)
			n = defaultWorkerCount
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("JOB_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid JOB_QUEUE_SIZE=%q, using default %d", v, defaultQueueSize)
			n = defaultQueueSize
		}
		if n < minQueueSize {
			log.Printf("JOB_QUEUE_SIZE raised to minimum %d (was %d)", minQueueSize, n)
			n = minQueueSize
		}
		if n > maxQueueSize {
			log.Printf("JOB_QUEUE_SIZE capped at %d (was %d)", maxQueueSize, n)
			n = maxQueueSize
		}
		cfg.JobQueueSize = n
	}

	if cfg.JobQueueSize < cfg.WorkerCount {
		log.Printf("JOB_QUEUE_SIZE must be >= WORKER_COUNT; using %d", max(defaultQueueSize, cfg.WorkerCount))
		cfg.JobQueueSize = max(defaultQueueSize, cfg.WorkerCount)
	}

	if v := os.Getenv("JOB_TIMEOUT_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid JOB_TIMEOUT_SEC: %w", err)
		}
		if n <= 0 {
			return cfg, errors.New("JOB_TIMEOUT_SEC must be positive")
		}
		cfg.JobTimeoutSec = n
	}

	cfg.LLM = MergeLLMConfig(DefaultLLMConfig(), fileCfg.LLM)
	cfg.LLM.APIKey = firstNonEmpty(os.Getenv("OPENAI_API_KEY"), cfg.LLM.APIKey)
	cfg.LLM.BaseURL = firstNonEmpty(
		os.Getenv("OPENAI_BASE_URL"),
		os.Getenv("OPENAI_API_BASE"),
		cfg.LLM.BaseURL,
	)
	if v := strings.TrimSpace(os.Getenv("TRANSCRIBE_MODEL")); v != "" {
		cfg.LLM.TranscribeModel = v
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_MODEL")); v != "" {
		cfg.LLM.ChatModel = v
	}
	if v := strings.TrimSpace(os.Getenv("TRANSCRIBE_LANGUAGE")); v != "" {
		cfg.LLM.Language = v
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}

	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.MeetingsDir) == "" {
		return errors.New("MEETINGS_DIR is required")
	}
	if strings.TrimSpace(cfg.HTTPPort) == "" {
		return errors.New("HTTP_PORT is required")
	}
	if strings.TrimSpace(cfg.LLM.TranscribeModel) == "" {
		return errors.New("llm transcribe model is required")
	}
	if strings.TrimSpace(cfg.LLM.ChatModel) == "" {
		return errors.New("llm chat model is required")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return defaultVal
	}
	return parseBoolEnv(key)
}

// Now returns wall-clock time truncated to whole seconds, the resolution of
// meeting keys.
func Now() time.Time {
	return time.Now().Truncate(time.Second)
}
