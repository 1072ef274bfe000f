package conceptdb

import (
	"log/slog"

	"github.com/hupe1980/conceptdb/index/annoy"
)

type options struct {
	logger      *Logger
	indexPath   string
	indexOptFns []func(o *annoy.Options)
}

// Option configures library open behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
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
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithIndexPath overrides the persisted index file location.
// By default it is derived from the database path plus ".annoy".
func WithIndexPath(path string) Option {
	return func(o *options) {
		o.indexPath = path
	}
}

// WithIndexOptions forwards configuration to the underlying annoy index
// (tree count, metric, compression). The index dimensionality is always
// taken from the encoder and cannot be overridden here.
func WithIndexOptions(optFns ...func(o *annoy.Options)) Option {
	return func(o *options) {
		o.indexOptFns = append(o.indexOptFns, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
