package orchestrator

import (
	"time"
)

// Option configures a RoleWorker, Coordinator, Monitor or Dispatcher.
// Use With* functions to create Options.
type Option func(*options)

// options holds all optional configuration shared by the loop types.
type options struct {
	backoff     Backoff
	logger      *DebugLogger
	events      *EventEmitter
	maxAttempts int
	execTimeout time.Duration
	stallLimit  int
	preflight   bool
	roles       []string
	mode        Mode
	now         func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		backoff: FixedBackoff{Interval: DefaultPollInterval},
		mode:    ModeWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// log writes to the configured logger, falling back to the package logger.
func (o *options) log(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Log(format, args...)
		return
	}
	debugLog(format, args...)
}

// WithBackoff sets how loops wait before re-reading the store.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithPollInterval is shorthand for WithBackoff(FixedBackoff{Interval: d}).
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.backoff = FixedBackoff{Interval: d} }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithEvents publishes dispatch events to e.
func WithEvents(e *EventEmitter) Option {
	return func(o *options) { o.events = e }
}

// WithMaxAttempts stops the loop with ErrAttemptsExhausted once a task has
// been claimed n times without completing. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithExecTimeout bounds a single executor call. A timeout counts as a
// failure and requeues the task.
func WithExecTimeout(d time.Duration) Option {
	return func(o *options) { o.execTimeout = d }
}

// WithStallLimit turns n consecutive checks without progress into ErrStalled.
// Zero keeps polling forever.
func WithStallLimit(n int) Option {
	return func(o *options) { o.stallLimit = n }
}

// WithPreflight validates the task graph before execution starts. When roles
// are given, tasks naming any other role are rejected.
func WithPreflight(roles ...string) Option {
	return func(o *options) {
		o.preflight = true
		o.roles = roles
	}
}

// WithMode selects the dispatch variant used by a Dispatcher.
func WithMode(m Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithClock overrides the time source used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
