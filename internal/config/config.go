package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Dataset source, in order of precedence: URL, path, discovery in DataDir.
	DataURL          string
	DataPath         string
	DataDir          string
	DataFetchTimeout time.Duration
	DataFetchRetries int

	ViewsFile     string
	ViewCacheSize int

	// Optional Kafka ingest.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DATA_FETCH_TIMEOUT", "10s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid DATA_FETCH_TIMEOUT")
	}

	fetchRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("DATA_FETCH_RETRIES", "3"))
	if err != nil || fetchRetries < 0 {
		return nil, errors.New("invalid DATA_FETCH_RETRIES")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataURL:          os.Getenv("DATA_URL"),
		DataPath:         os.Getenv("DATA_PATH"),
		DataDir:          sharedcfg.EnvOrDefault("DATA_DIR", "."),
		DataFetchTimeout: fetchTimeout,
		DataFetchRetries: fetchRetries,

		ViewsFile:     os.Getenv("VIEWS_FILE"),
		ViewCacheSize: parseViewCacheSize(),

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-near-miss-incidents"),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "normalized-near-miss-incidents"),
		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "near-miss-analytics"),

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseViewCacheSize() int {
	if s := os.Getenv("VIEW_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
