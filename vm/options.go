package vm

import "io"

const (
	// DefaultStackCapacity is the capacity of stack 0.
	DefaultStackCapacity = 30000
	// DefaultMaxCapacity bounds the capacity of stacks created by #sns\.
	DefaultMaxCapacity = 1 << 20
	// MaxEscapeLen is the longest payload accepted between an escape letter
	// and its terminating backslash.
	MaxEscapeLen = 64
)

type config struct {
	stackCapacity int
	maxCapacity   int
	stepLimit     uint64
	strict        bool
	trace         bool
	diag          io.Writer
}

func defaultConfig() config {
	return config{
		stackCapacity: DefaultStackCapacity,
		maxCapacity:   DefaultMaxCapacity,
		diag:          io.Discard,
	}
}

// Option configures a VM.
type Option func(*config)

// WithStackCapacity sets the capacity of stack 0.
func WithStackCapacity(n int) Option {
	return func(c *config) { c.stackCapacity = n }
}

// WithMaxCapacity bounds capacities requested by programs. Zero removes the
// bound.
func WithMaxCapacity(n int) Option {
	return func(c *config) { c.maxCapacity = n }
}

// WithStepLimit stops a run with StatusStepLimit after n instructions. Zero
// means no limit.
func WithStepLimit(n uint64) Option {
	return func(c *config) { c.stepLimit = n }
}

// WithStrictEscapes makes unknown #s and #g names fail with
// StatusUnknownCommand instead of being ignored.
func WithStrictEscapes(strict bool) Option {
	return func(c *config) { c.strict = strict }
}

// WithTrace logs every dispatched instruction at debug level.
func WithTrace(trace bool) Option {
	return func(c *config) { c.trace = trace }
}

// WithDiagnostics sets where the ` instruction writes its stack dump.
func WithDiagnostics(w io.Writer) Option {
	return func(c *config) { c.diag = w }
}
