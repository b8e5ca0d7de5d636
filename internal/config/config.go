package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all vitals configuration.
type Config struct {
	Source    SourceConfig
	Pipeline  PipelineConfig
	Predictor PredictorConfig
	Output    OutputConfig
	Log       LogConfig
}

// SourceConfig selects and configures the record fetcher.
type SourceConfig struct {
	Provider     string // "api" or "replay"
	Endpoint     string
	APIKey       string
	RecordsKey   string
	ReplayPath   string
	FetchTimeout time.Duration
}

// PipelineConfig holds cycle cadence and retry settings.
type PipelineConfig struct {
	PollInterval         time.Duration
	RetryAttempts        int
	RetryBase            time.Duration
	DedupIgnoreTimestamp bool
}

// PredictorConfig selects the alarm model.
type PredictorConfig struct {
	Kind           string // "rules", "onnx", "remote"
	ModelPath      string
	ORTLib         string
	URL            string
	AlarmThreshold int
}

// OutputConfig holds the dataset path and optional mirrors.
type OutputConfig struct {
	Path         string
	WebhookURL   string
	PostgresURL  string
	KafkaBrokers []string
	KafkaTopic   string
	Stdout       bool
	MirrorDrain  time.Duration
	MetricsAddr  string
}

// LogConfig holds slog settings.
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Source: SourceConfig{
			Provider:     getenv("VITALS_SOURCE", "api"),
			Endpoint:     os.Getenv("VITALS_ENDPOINT"),
			APIKey:       os.Getenv("VITALS_API_KEY"),
			RecordsKey:   getenv("VITALS_RECORDS_KEY", "patient_history"),
			ReplayPath:   os.Getenv("VITALS_REPLAY_PATH"),
			FetchTimeout: getenvDuration("VITALS_FETCH_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			PollInterval:         getenvDuration("VITALS_POLL_INTERVAL", 5*time.Second),
			RetryAttempts:        getenvInt("VITALS_RETRY_ATTEMPTS", 0),
			RetryBase:            getenvDuration("VITALS_RETRY_BASE", time.Second),
			DedupIgnoreTimestamp: getenvBool("VITALS_DEDUP_IGNORE_TIMESTAMP", false),
		},
		Predictor: PredictorConfig{
			Kind:           getenv("VITALS_PREDICTOR", "rules"),
			ModelPath:      os.Getenv("VITALS_MODEL_PATH"),
			ORTLib:         os.Getenv("VITALS_ORT_LIB"),
			URL:            os.Getenv("VITALS_PREDICTOR_URL"),
			AlarmThreshold: getenvInt("VITALS_ALARM_THRESHOLD", 5),
		},
		Output: OutputConfig{
			Path:         getenv("VITALS_OUTPUT", "predictions.csv"),
			WebhookURL:   os.Getenv("VITALS_WEBHOOK_URL"),
			PostgresURL:  os.Getenv("VITALS_POSTGRES_URL"),
			KafkaBrokers: getenvList("VITALS_KAFKA_BROKERS"),
			KafkaTopic:   getenv("VITALS_KAFKA_TOPIC", "vitals.predictions"),
			Stdout:       getenvBool("VITALS_MIRROR_STDOUT", false),
			MirrorDrain:  getenvDuration("VITALS_MIRROR_DRAIN_TIMEOUT", 30*time.Second),
			MetricsAddr:  os.Getenv("VITALS_METRICS_ADDR"),
		},
		Log: LogConfig{
			Level:  getenv("VITALS_LOG_LEVEL", "info"),
			Format: getenv("VITALS_LOG_FORMAT", "text"),
		},
	}
}

// Validate checks the configuration for errors. Returns all problems found,
// joined into a single error.
func (c Config) Validate() error {
	var errs []error

	switch c.Source.Provider {
	case "api":
		if c.Source.Endpoint == "" {
			errs = append(errs, errors.New("VITALS_ENDPOINT is required for the api source"))
		}
	case "replay":
		if c.Source.ReplayPath == "" {
			errs = append(errs, errors.New("VITALS_REPLAY_PATH is required for the replay source"))
		} else if _, err := os.Stat(c.Source.ReplayPath); err != nil {
			errs = append(errs, fmt.Errorf("replay file not found: %s", c.Source.ReplayPath))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q (want api or replay)", c.Source.Provider))
	}
	if c.Source.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be >= 0, got %v", c.Source.FetchTimeout))
	}

	if c.Pipeline.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll interval must be >= 0, got %v", c.Pipeline.PollInterval))
	}
	if c.Pipeline.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry attempts must be >= 0, got %d", c.Pipeline.RetryAttempts))
	}
	if c.Pipeline.RetryAttempts > 0 && c.Pipeline.RetryBase <= 0 {
		errs = append(errs, fmt.Errorf("retry base must be > 0 when retries are enabled, got %v", c.Pipeline.RetryBase))
	}

	switch c.Predictor.Kind {
	case "rules":
		if c.Predictor.AlarmThreshold < 1 {
			errs = append(errs, fmt.Errorf("alarm threshold must be >= 1, got %d", c.Predictor.AlarmThreshold))
		}
	case "onnx":
		if _, err := os.Stat(c.Predictor.ModelPath); err != nil {
			errs = append(errs, fmt.Errorf("model file not found: %s", c.Predictor.ModelPath))
		}
	case "remote":
		if c.Predictor.URL == "" {
			errs = append(errs, errors.New("VITALS_PREDICTOR_URL is required for the remote predictor"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown predictor %q (want rules, onnx or remote)", c.Predictor.Kind))
	}

	if c.Output.MirrorDrain < 0 {
		errs = append(errs, fmt.Errorf("mirror drain timeout must be >= 0, got %v", c.Output.MirrorDrain))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (want text or json)", c.Log.Format))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getenvList splits a comma-separated variable, dropping empty entries.
func getenvList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
