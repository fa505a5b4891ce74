package query

import (
	"errors"
	"time"

	"github.com/apex/log"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Options configures a Client. The zero value is usable: NewClient fills
// every unset field from DefaultOptions before validating.
type Options struct {
	// StaleTime is the age under which a success entry is considered fresh.
	// Zero means entries are always stale, so every resolve fetches.
	StaleTime time.Duration

	// CacheTime is how long an entry with no subscribers survives before the
	// GC sweeper evicts it. Zero selects the default; a negative value
	// disables GC eviction entirely.
	CacheTime time.Duration

	// MaxRetries is the total number of fetch attempts per chain, including
	// the first call.
	MaxRetries int

	// RetryBaseDelay is the wait before the first retry; it doubles on each
	// subsequent attempt.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff growth.
	RetryMaxDelay time.Duration

	// RetryJitterMax bounds the random slack added to each backoff wait.
	// Zero selects the default; a negative value disables jitter.
	RetryJitterMax time.Duration

	// DropDataOnError clears cached data when a fetch chain fails. The
	// default keeps serving the previous value alongside the error.
	DropDataOnError bool

	// NumShards is the entry table shard count.
	NumShards int

	// SweepInterval is the GC sweep cadence.
	SweepInterval time.Duration

	// RefetchConcurrency bounds how many invalidation-triggered refetches
	// run at once.
	RefetchConcurrency int

	// KeyCodec encodes structured keys; defaults to NewKeyCodec().
	KeyCodec KeyCodec

	// Logger receives fetch, retry, and GC events; defaults to log.Log.
	Logger log.Interface
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		StaleTime:          0,
		CacheTime:          5 * time.Minute,
		MaxRetries:         3,
		RetryBaseDelay:     time.Second,
		RetryMaxDelay:      30 * time.Second,
		RetryJitterMax:     time.Second,
		NumShards:          256,
		SweepInterval:      time.Minute,
		RefetchConcurrency: 8,
		KeyCodec:           NewKeyCodec(),
		Logger:             log.Log,
	}
}

// Validate checks the configuration values. Unset (zero) fields pass, the
// same way ozzo's threshold rules treat empty values, because NewClient
// replaces them with defaults.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.StaleTime, validation.By(nonNegativeDuration)),
		validation.Field(&o.MaxRetries, validation.Min(1)),
		validation.Field(&o.RetryBaseDelay, validation.By(nonNegativeDuration)),
		validation.Field(&o.RetryMaxDelay, validation.By(nonNegativeDuration)),
		validation.Field(&o.NumShards, validation.Min(1)),
		validation.Field(&o.SweepInterval, validation.By(nonNegativeDuration)),
		validation.Field(&o.RefetchConcurrency, validation.Min(1)),
	)
}

// NewClient constructs the default cache client from opts, wiring the entry
// store, subscription hub, retry policy, and GC sweeper.
func NewClient(opts Options) (Client, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newClient(opts), nil
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CacheTime == 0 {
		o.CacheTime = def.CacheTime
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.RetryBaseDelay == 0 {
		o.RetryBaseDelay = def.RetryBaseDelay
	}
	if o.RetryMaxDelay == 0 {
		o.RetryMaxDelay = def.RetryMaxDelay
	}
	if o.RetryJitterMax == 0 {
		o.RetryJitterMax = def.RetryJitterMax
	}
	if o.NumShards == 0 {
		o.NumShards = def.NumShards
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = def.SweepInterval
	}
	if o.RefetchConcurrency == 0 {
		o.RefetchConcurrency = def.RefetchConcurrency
	}
	if o.KeyCodec == nil {
		o.KeyCodec = def.KeyCodec
	}
	if o.Logger == nil {
		o.Logger = def.Logger
	}
	return o
}

func nonNegativeDuration(value any) error {
	d, ok := value.(time.Duration)
	if !ok || d < 0 {
		return errors.New("must be a non-negative duration")
	}
	return nil
}
