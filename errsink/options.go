package errsink

import "fmt"

// ErrorMode defines how a Collector treats the failures it receives
type ErrorMode int

const (
	// CollectAll keeps every error and reports them as an AggregateError
	CollectAll ErrorMode = iota
	// FailFast keeps the first error and fires the OnFirstError callback
	FailFast
	// IgnoreErrors only counts errors
	IgnoreErrors
)

func (m ErrorMode) String() string {
	switch m {
	case CollectAll:
		return "collect"
	case FailFast:
		return "fail-fast"
	case IgnoreErrors:
		return "ignore"
	default:
		return "unknown"
	}
}

// Config holds configuration for a Collector
type Config struct {
	errorMode    ErrorMode
	maxErrors    int
	onFirstError func(error)
}

// Option configures a Collector
type Option func(*Config)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		errorMode: CollectAll,
		maxErrors: 1024,
	}
}

// BuildConfig creates a config from options, starting with defaults
func BuildConfig(opts []Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// WithErrorMode sets how errors are handled
func WithErrorMode(mode ErrorMode) Option {
	return func(c *Config) {
		c.errorMode = mode
	}
}

// WithMaxErrors caps how many errors CollectAll retains. Errors past the
// cap are counted but dropped. n <= 0 removes the cap.
func WithMaxErrors(n int) Option {
	return func(c *Config) {
		c.maxErrors = n
	}
}

// WithOnFirstError registers fn to run once, with the first error the
// Collector sees, in every mode.
func WithOnFirstError(fn func(error)) Option {
	return func(c *Config) {
		c.onFirstError = fn
	}
}

// ParseErrorMode maps "collect", "fail-fast" or "ignore" to an ErrorMode.
func ParseErrorMode(s string) (ErrorMode, error) {
	switch s {
	case "", "collect":
		return CollectAll, nil
	case "fail-fast":
		return FailFast, nil
	case "ignore":
		return IgnoreErrors, nil
	default:
		return CollectAll, fmt.Errorf("unknown error mode %q", s)
	}
}
