package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DEFAULT_MODEL_NAME = "cointegrated/rubert-tiny-sentiment-balanced"

	BACKEND_HUGOT       = "hugot"
	BACKEND_HUGGINGFACE = "huggingface"
	BACKEND_OPENAI      = "openai"
	BACKEND_VADER       = "vader"

	STATS_BACKEND_FILE     = "file"
	STATS_BACKEND_DYNAMODB = "dynamodb"
)

type Config struct {
	Environment string
	LogLevel    string

	API    APIConfig
	Model  ModelConfig
	Cache  CacheConfig
	Limits RateLimitConfig
	Stats  StatsConfig
	Valkey ValkeyConfig
	Kafka  KafkaConfig
	AWS    AWSConfig
}

type APIConfig struct {
	Host string
	Port int
}

func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type ModelConfig struct {
	Name     string
	Backend  string
	Dir      string
	WarmUp   bool
	HFAPIURL string
	HFToken  string

	OnnxLibraryPath   string
	MaxSequenceLength int

	OpenAIKey   string
	OpenAIModel string
}

type CacheConfig struct {
	Capacity         int
	IronyPhrasesFile string
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type StatsConfig struct {
	Backend string
	File    string
	Table   string
}

type ValkeyConfig struct {
	Address  string
	Password string
	TLS      bool
}

func (v ValkeyConfig) Enabled() bool {
	return v.Address != ""
}

type KafkaConfig struct {
	Broker       string
	ResultsTopic string
}

func (k KafkaConfig) Enabled() bool {
	return k.Broker != ""
}

type AWSConfig struct {
	Region   string
	Endpoint string
}

// Load reads the service configuration from the process environment.
// LoadEnv should run first so .env values are visible.
func Load() (*Config, error) {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	port, err := getEnvInt("API_PORT", 8000)
	collect(err)
	capacity, err := getEnvInt("CACHE_CAPACITY", 1000)
	collect(err)
	maxRequests, err := getEnvInt("RATE_LIMIT_MAX", 30)
	collect(err)
	window, err := getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second)
	collect(err)
	warmUp, err := getEnvBool("MODEL_WARMUP", true)
	collect(err)
	valkeyTLS, err := getEnvBool("VALKEY_TLS", false)
	collect(err)
	maxSeqLen, err := getEnvInt("MODEL_MAX_SEQUENCE_LENGTH", 512)
	collect(err)

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		API: APIConfig{
			Host: getEnv("API_HOST", "0.0.0.0"),
			Port: port,
		},
		Model: ModelConfig{
			Name:              getEnv("ML_MODEL_NAME", DEFAULT_MODEL_NAME),
			Backend:           strings.ToLower(getEnv("MODEL_BACKEND", BACKEND_HUGOT)),
			Dir:               getEnv("MODEL_DIR", "./models"),
			WarmUp:            warmUp,
			HFAPIURL:          getEnv("HF_API_URL", "https://api-inference.huggingface.co/models/"),
			HFToken:           os.Getenv("HF_API_TOKEN"),
			OnnxLibraryPath:   os.Getenv("ONNX_LIBRARY_PATH"),
			MaxSequenceLength: maxSeqLen,
			OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Cache: CacheConfig{
			Capacity:         capacity,
			IronyPhrasesFile: os.Getenv("IRONY_PHRASES_FILE"),
		},
		Limits: RateLimitConfig{
			MaxRequests: maxRequests,
			Window:      window,
		},
		Stats: StatsConfig{
			Backend: strings.ToLower(getEnv("STATS_BACKEND", STATS_BACKEND_FILE)),
			File:    getEnv("STATS_FILE", "stats.json"),
			Table:   getEnv("STATS_TABLE", "SentimentUserStats"),
		},
		Valkey: ValkeyConfig{
			Address:  os.Getenv("VALKEY_INIT_ADDRESS"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			TLS:      valkeyTLS,
		},
		Kafka: KafkaConfig{
			Broker:       os.Getenv("KAFKA_BROKER"),
			ResultsTopic: getEnv("KAFKA_RESULTS_TOPIC", "sentiment-results"),
		},
		AWS: AWSConfig{
			Region:   getEnv("AWS_REGION", "us-west-2"),
			Endpoint: os.Getenv("AWS_ENDPOINT"),
		},
	}

	switch cfg.Model.Backend {
	case BACKEND_HUGOT, BACKEND_HUGGINGFACE, BACKEND_OPENAI, BACKEND_VADER:
	default:
		errs = append(errs, fmt.Sprintf("MODEL_BACKEND: unknown backend %q", cfg.Model.Backend))
	}
	switch cfg.Stats.Backend {
	case STATS_BACKEND_FILE, STATS_BACKEND_DYNAMODB:
	default:
		errs = append(errs, fmt.Sprintf("STATS_BACKEND: unknown backend %q", cfg.Stats.Backend))
	}
	if cfg.Cache.Capacity <= 0 {
		errs = append(errs, "CACHE_CAPACITY: must be positive")
	}
	if cfg.Model.MaxSequenceLength <= 2 {
		errs = append(errs, "MODEL_MAX_SEQUENCE_LENGTH: must be greater than 2")
	}
	if cfg.Limits.MaxRequests <= 0 || cfg.Limits.Window <= 0 {
		errs = append(errs, "RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("60").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
