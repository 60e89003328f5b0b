package pool

import (
	"io"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/stat-ml/ncvis/internal/algorithms"
	"github.com/stat-ml/ncvis/internal/progress"
	"golang.org/x/time/rate"
)

// Defaults used by New.
const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultMessage      = "Loading "
)

// Reporter renders progress samples. See WithReporter.
type Reporter = progress.Reporter

// BackoffType selects how retry delays grow.
type BackoffType = algorithms.BackoffType

const (
	BackoffExponential = algorithms.BackoffExponential
	BackoffJittered    = algorithms.BackoffJittered
)

// Option is a functional option for configuring a LargePool.
type Option func(*config)

type config struct {
	workerCount  int
	taskBuffer   int
	pollInterval time.Duration
	stallTimeout time.Duration
	failFast     bool
	pinCPU       bool

	showProgress bool
	logProgress  bool
	message      string
	progressOut  io.Writer
	reporter     Reporter

	rateLimiter  *rate.Limiter
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	backoffType  BackoffType
	jitter       float64

	logger  zerolog.Logger
	metrics *Metrics
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		workerCount:  runtime.GOMAXPROCS(0),
		pollInterval: DefaultPollInterval,
		showProgress: true,
		message:      DefaultMessage,
		maxAttempts:  1,
		maxDelay:     5 * time.Second,
		backoffType:  BackoffExponential,
		jitter:       0.1,
		logger:       zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.taskBuffer == 0 {
		cfg.taskBuffer = cfg.workerCount
	}
	return cfg
}

// newReporter picks the renderer for one run.
func (c *config) newReporter(log zerolog.Logger) Reporter {
	switch {
	case c.reporter != nil:
		return c.reporter
	case !c.showProgress:
		return progress.Nop{}
	case c.logProgress:
		return progress.NewLog(log, c.message)
	default:
		return progress.NewBar(c.progressOut, c.message)
	}
}

func (c *config) newBackoff() algorithms.Backoff {
	return algorithms.NewBackoff(c.backoffType, c.initialDelay, c.maxDelay, c.jitter)
}

// WithWorkerCount sets the number of worker goroutines.
// If not specified, defaults to runtime.GOMAXPROCS(0). A run never starts
// more workers than it has declared tasks.
func WithWorkerCount(count int) Option {
	return func(cfg *config) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithTaskBuffer sets the buffer size of the input channel between the
// feeder and the workers. Defaults to the worker count.
func WithTaskBuffer(size int) Option {
	return func(cfg *config) {
		if size > 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithPollInterval sets how often the monitor samples the completed count.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.pollInterval = d
		}
	}
}

// WithStallTimeout bounds how long a run may go without any task completing.
// When exceeded the run is cancelled and returns ErrStalled along with the
// results gathered so far. Zero, the default, waits indefinitely.
func WithStallTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d >= 0 {
			cfg.stallTimeout = d
		}
	}
}

// WithFailFast cancels the run on the first failed task. By default every
// task is attempted and failures are joined into the returned error.
func WithFailFast() Option {
	return func(cfg *config) {
		cfg.failFast = true
	}
}

// WithCPUAffinity pins every worker goroutine to its own OS thread and, where
// the platform allows, to one logical core.
func WithCPUAffinity() Option {
	return func(cfg *config) {
		cfg.pinCPU = true
	}
}

// WithProgress turns progress rendering on or off. On by default.
func WithProgress(show bool) Option {
	return func(cfg *config) {
		cfg.showProgress = show
	}
}

// WithMessage sets the label printed in front of the progress indicator.
func WithMessage(message string) Option {
	return func(cfg *config) {
		cfg.message = message
	}
}

// WithProgressWriter sends the progress bar to w instead of stderr.
func WithProgressWriter(w io.Writer) Option {
	return func(cfg *config) {
		cfg.progressOut = w
	}
}

// WithLogProgress reports progress as log lines through the pool logger
// instead of drawing a bar. Useful when output is not a terminal.
func WithLogProgress() Option {
	return func(cfg *config) {
		cfg.logProgress = true
	}
}

// WithReporter replaces the built-in progress renderers. The reporter is
// driven from the goroutine calling Run.
func WithReporter(r Reporter) Option {
	return func(cfg *config) {
		cfg.reporter = r
	}
}

// WithRateLimit caps how many task attempts start per second across all
// workers. burst is the bucket size. Non-positive values disable limiting.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithRetryPolicy retries a failed task up to maxAttempts times in total.
// initialDelay is the wait before the first retry; later waits follow the
// backoff chosen with WithBackoff (exponential by default).
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(cfg *config) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			cfg.initialDelay = initialDelay
		}
	}
}

// WithBackoff selects the retry delay algorithm, the delay ceiling and, for
// BackoffJittered, the jitter factor in [0, 1].
func WithBackoff(kind BackoffType, maxDelay time.Duration, jitter float64) Option {
	return func(cfg *config) {
		cfg.backoffType = kind
		if maxDelay > 0 {
			cfg.maxDelay = maxDelay
		}
		if jitter >= 0 {
			cfg.jitter = jitter
		}
	}
}

// WithLogger sets the logger. Runs log at debug level except for warnings
// about stalls and declared-count mismatches.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithMetrics records task outcomes, durations and busy workers.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}
