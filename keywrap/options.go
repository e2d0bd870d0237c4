package keywrap

import (
	"time"

	"github.com/rs/zerolog"
)

type options struct {
	log       zerolog.Logger
	presets   PresetRegistry
	requester *Requester
	now       func() time.Time
	domain    string
	service   string
}

// Option configures providers and key managers.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPresets replaces DefaultPresets as the preset registry.
func WithPresets(r PresetRegistry) Option {
	return func(o *options) { o.presets = r }
}

// WithRequester fixes the requester identity written into envelopes.
// Without it the manager reads RequesterFromEnv once at construction.
func WithRequester(r Requester) Option {
	return func(o *options) {
		r = r.WithDefaults()
		o.requester = &r
	}
}

// WithClock overrides time.Now for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNamespace sets the domain and service segments of client lookup keys.
func WithNamespace(domain, service string) Option {
	return func(o *options) {
		o.domain = domain
		o.service = service
	}
}

func collectOptions(opts []Option) options {
	o := options{
		log:     zerolog.Nop(),
		presets: DefaultPresets,
		now:     time.Now,
		domain:  DefaultDomain,
		service: DefaultService,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
