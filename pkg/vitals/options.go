package vitals

import "time"

type options struct {
	provider        string
	endpoint        string
	apiKey          string
	recordsKey      string
	pollInterval    time.Duration
	fetchTimeout    time.Duration
	retryAttempts   int
	retryBase       time.Duration
	ignoreTimestamp bool
	outputPath      string
	predictor       Predictor
	modelPath       string
	ortLib          string
	alarmThreshold  int
}

// Option configures a Vitals instance.
type Option func(*options)

// WithEndpoint sets the URL polled for patient history pages.
func WithEndpoint(url string) Option {
	return func(o *options) {
		o.provider = "api"
		o.endpoint = url
	}
}

// WithReplayFile reads every page from a local JSON file instead of an
// endpoint. Useful for demos and tests.
func WithReplayFile(path string) Option {
	return func(o *options) {
		o.provider = "replay"
		o.endpoint = path
	}
}

// WithAPIKey sends key as a Bearer token on every fetch.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithRecordsKey sets the top-level JSON key holding the record array.
// Default: "patient_history".
func WithRecordsKey(key string) Option {
	return func(o *options) { o.recordsKey = key }
}

// WithPollInterval sets the wait between cycles. Default: 5s.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithFetchTimeout bounds each fetch. Default: 30s.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

// WithRetry retries failed fetches within a cycle with exponential backoff.
func WithRetry(attempts int, base time.Duration) Option {
	return func(o *options) {
		o.retryAttempts = attempts
		o.retryBase = base
	}
}

// WithIgnoreTimestamp treats rows that differ only in timestamp as duplicates.
func WithIgnoreTimestamp() Option {
	return func(o *options) { o.ignoreTimestamp = true }
}

// WithOutputPath sets the dataset path. "{run}" is replaced by the run ID.
// Default: "predictions.csv".
func WithOutputPath(path string) Option {
	return func(o *options) { o.outputPath = path }
}

// WithPredictor replaces the built-in rules predictor.
func WithPredictor(p Predictor) Option {
	return func(o *options) { o.predictor = p }
}

// WithModel loads an ONNX classifier taking an M×5 float input.
// ortLib may be empty to use the platform default ONNX Runtime library.
func WithModel(modelPath, ortLib string) Option {
	return func(o *options) {
		o.modelPath = modelPath
		o.ortLib = ortLib
	}
}

// WithAlarmThreshold sets the early-warning score at which the built-in
// rules predictor raises an alarm. Default: 5.
func WithAlarmThreshold(n int) Option {
	return func(o *options) { o.alarmThreshold = n }
}

func defaultOptions() options {
	return options{
		provider:     "api",
		pollInterval: 5 * time.Second,
		fetchTimeout: 30 * time.Second,
		retryBase:    time.Second,
	}
}
