package loopclosure

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/roboswarm/loopclosure/blobstore"
)

type options struct {
	logger          *Logger
	stats           StatsObserver
	vocabStore      blobstore.Store
	tickInterval    time.Duration
	verifyBatchSize int
	queueHighWater  int
	requestRate     rate.Limit
	requestBurst    int
	seed            int64
}

// Option configures Service constructor behavior.
type Option func(*options)

// WithLogger configures structured logging for the service.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewLogger(WithLevel(level))).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewLogger(WithLevel(level))
	}
}

// WithStatsObserver configures an observer for traffic and queue
// statistics. Pass nil to disable.
func WithStatsObserver(stats StatsObserver) Option {
	return func(o *options) {
		if stats == nil {
			stats = NoopStatsObserver{}
		}
		o.stats = stats
	}
}

// WithVocabularyStore configures the blob store the vocabulary is loaded
// from. The default resolves vocabulary_path on the local file system; a
// MinIO-backed store lets a fleet share one vocabulary artifact.
func WithVocabularyStore(store blobstore.Store) Option {
	return func(o *options) {
		o.vocabStore = store
	}
}

// WithTickInterval sets the comms and verify worker period.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithVerifyBatchSize caps the candidates drained per verify tick.
func WithVerifyBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.verifyBatchSize = n
		}
	}
}

// WithQueueHighWaterMark sets the verify queue depth above which the comms
// worker stops issuing outbound frame requests until the backlog clears.
func WithQueueHighWaterMark(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueHighWater = n
		}
	}
}

// WithRequestRate bounds outbound frame request publishes.
func WithRequestRate(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.requestRate = limit
		o.requestBurst = burst
	}
}

// WithRandomSeed seeds the RANSAC sampler, making verification
// reproducible across runs.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:          NoopLogger(),
		stats:           NoopStatsObserver{},
		vocabStore:      blobstore.NewLocalStore(""),
		tickInterval:    time.Second,
		verifyBatchSize: 10,
		queueHighWater:  100,
		requestRate:     rate.Limit(5),
		requestBurst:    1,
		seed:            1,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
