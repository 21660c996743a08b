// Package series turns recurring rules into event series and resolves
// scoped updates and deletions across the members of a series.
//
// The engine never writes: every operation returns a Resolution describing
// the patches, new events, deletions and notifications, and the caller (see
// Applier) performs them.
package series

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/libseries/recurrence"
	"github.com/cyp0633/libseries/storage"
)

// Clock is the source of "now" for timeline partitioning
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator mints opaque unique identifiers
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator produces random UUIDs, optionally prefixed
type UUIDGenerator struct {
	Prefix string
}

func (g UUIDGenerator) NewID() string {
	return g.Prefix + uuid.NewString()
}

// TimezoneResolver maps an IANA name to a location
type TimezoneResolver interface {
	Resolve(name string) (*time.Location, error)
}

// TimezoneResolverFunc adapts a function to TimezoneResolver
type TimezoneResolverFunc func(name string) (*time.Location, error)

func (f TimezoneResolverFunc) Resolve(name string) (*time.Location, error) {
	return f(name)
}

type options struct {
	logger *slog.Logger
	clock  Clock
	ids    IDGenerator
	zones  TimezoneResolver
	config recurrence.EngineConfig
}

// Option configures an Engine
type Option func(*options)

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func WithIDGenerator(ids IDGenerator) Option {
	return func(o *options) {
		o.ids = ids
	}
}

func WithTimezoneResolver(zones TimezoneResolver) Option {
	return func(o *options) {
		o.zones = zones
	}
}

// WithEngineConfig sets the recurrence engine configuration (cache, cap)
func WithEngineConfig(config recurrence.EngineConfig) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithMaxOccurrences overrides the expansion cap
func WithMaxOccurrences(n int) Option {
	return func(o *options) {
		o.config.MaxOccurrences = n
	}
}

// Engine resolves series operations against a member store
type Engine struct {
	store  storage.MemberStore
	rules  *recurrence.Engine
	clock  Clock
	ids    IDGenerator
	zones  TimezoneResolver
	logger *slog.Logger
}

// NewEngine creates a series engine. store may be nil when only
// Materialize, CreateSeries and Create are used.
func NewEngine(store storage.MemberStore, opts ...Option) *Engine {
	o := options{config: recurrence.DisabledCacheConfig}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.ids == nil {
		o.ids = UUIDGenerator{}
	}
	if o.zones == nil {
		o.zones = TimezoneResolverFunc(time.LoadLocation)
	}

	return &Engine{
		store:  store,
		rules:  recurrence.NewEngineWithConfig(o.config),
		clock:  o.clock,
		ids:    o.ids,
		zones:  o.zones,
		logger: o.logger,
	}
}

// Close stops the expansion cache, if any
func (e *Engine) Close() {
	e.rules.Close()
}

// Rules exposes the underlying recurrence engine
func (e *Engine) Rules() *recurrence.Engine {
	return e.rules
}

// location resolves an event's tz; an empty name means UTC arithmetic
func (e *Engine) location(name string) (*time.Location, error) {
	if name == "" {
		return nil, nil
	}
	loc, err := e.zones.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("resolve timezone %q: %w", name, err)
	}
	return loc, nil
}
