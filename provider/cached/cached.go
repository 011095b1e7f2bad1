// Package cached memoizes provider lookups.
//
// Concurrent lookups of the same coordinate are collapsed into one call of the
// wrapped provider. Results are kept in an expiring LRU cache so diamond
// dependencies and repeated resolution rounds do not fetch twice.
package cached

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/sync/singleflight"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/internal/metrics"
	"ocm.software/open-component-model/appmodel/provider"
)

const (
	// CacheMissCounterLabel tracks how many cache misses happened.
	CacheMissCounterLabel = "cache_miss"
	// CacheHitCounterLabel tracks how many cache hits happened.
	CacheHitCounterLabel = "cache_hit"
	// CacheShareCounterLabel tracks how many lookups were de-duplicated with singleflight.
	CacheShareCounterLabel = "cache_share"
	// LookupDurationHistogramLabel tracks the duration of lookups against the wrapped provider.
	LookupDurationHistogramLabel = "lookup_duration_seconds"
	// CacheEntriesGaugeLabel tracks how many lookups are cached.
	CacheEntriesGaugeLabel = "cache_entries"

	subsystem = "provider"
)

const (
	OperationMetadata = "metadata"
	OperationVersions = "versions"
	OperationDescribe = "describe"
)

// CacheMissCounterTotal counts the number of times a cache miss occurred.
// [operation].
var CacheMissCounterTotal = metrics.MustRegisterCounterVec(subsystem, CacheMissCounterLabel,
	"Number of times a provider cache miss occurred.", "operation")

// CacheHitCounterTotal counts the number of times a cache hit occurred.
// [operation].
var CacheHitCounterTotal = metrics.MustRegisterCounterVec(subsystem, CacheHitCounterLabel,
	"Number of times a provider cache hit occurred.", "operation")

// CacheShareCounterTotal counts the number of times an in-flight lookup was shared.
// [operation].
var CacheShareCounterTotal = metrics.MustRegisterCounterVec(subsystem, CacheShareCounterLabel,
	"Number of times a provider lookup was shared with a concurrent caller.", "operation")

// LookupDurationHistogram observes lookups against the wrapped provider.
// [operation].
var LookupDurationHistogram = metrics.MustRegisterHistogramVec(subsystem, LookupDurationHistogramLabel,
	"Duration of lookups against the wrapped provider.", []float64{0.001, 0.01, 0.1, 0.5, 1, 5}, "operation")

// CacheEntriesGauge is the number of lookups held by the most recently
// updated cache.
var CacheEntriesGauge = metrics.MustRegisterGauge(subsystem, CacheEntriesGaugeLabel,
	"Number of provider lookups held in the cache.")

const (
	DefaultSize = 4096
	DefaultTTL  = 10 * time.Minute
)

type Options struct {
	// Size is the maximum number of cached lookups.
	Size int
	// TTL is the lifetime of a cached lookup. Zero disables expiry.
	TTL time.Duration
}

type Option func(*Options)

func WithSize(size int) Option {
	return func(o *Options) {
		o.Size = size
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.TTL = ttl
	}
}

type result struct {
	value any
	err   error
}

// Provider wraps another provider with a single-flight cache.
type Provider struct {
	delegate provider.Provider
	sf       singleflight.Group
	cache    *expirable.LRU[string, *result]
}

var _ provider.Provider = (*Provider)(nil)

func New(delegate provider.Provider, opts ...Option) *Provider {
	options := &Options{Size: DefaultSize, TTL: DefaultTTL}
	for _, opt := range opts {
		opt(options)
	}
	if options.Size <= 0 {
		options.Size = DefaultSize
	}
	return &Provider{
		delegate: delegate,
		cache:    expirable.NewLRU[string, *result](options.Size, nil, options.TTL),
	}
}

func (p *Provider) Resolve(ctx context.Context, c artifact.Coordinate) (*provider.Metadata, error) {
	v, err := p.lookup(ctx, OperationMetadata, c.String(), func(ctx context.Context) (any, error) {
		return p.delegate.Resolve(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return v.(*provider.Metadata), nil //nolint:forcetypeassert // the key namespace guarantees the type
}

func (p *Provider) Versions(ctx context.Context, key artifact.Key) ([]string, error) {
	v, err := p.lookup(ctx, OperationVersions, key.String(), func(ctx context.Context) (any, error) {
		return p.delegate.Versions(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil //nolint:forcetypeassert // the key namespace guarantees the type
}

func (p *Provider) Describe(ctx context.Context, c artifact.Coordinate) (*provider.ExtensionDescriptor, error) {
	v, err := p.lookup(ctx, OperationDescribe, c.String(), func(ctx context.Context) (any, error) {
		return p.delegate.Describe(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return v.(*provider.ExtensionDescriptor), nil //nolint:forcetypeassert // the key namespace guarantees the type
}

// Purge drops all cached lookups.
func (p *Provider) Purge() {
	p.cache.Purge()
	CacheEntriesGauge.Set(0)
}

// Len returns the number of cached lookups.
func (p *Provider) Len() int {
	return p.cache.Len()
}

// lookup serves a cached result or calls fetch once for all concurrent
// callers of the same key. Only successes and ErrNotFound are cached, other
// errors may be transient.
func (p *Provider) lookup(ctx context.Context, operation, id string, fetch func(context.Context) (any, error)) (any, error) {
	key := operation + "/" + id
	if cached, ok := p.cache.Get(key); ok {
		CacheHitCounterTotal.WithLabelValues(operation).Inc()
		return cached.value, cached.err
	}
	CacheMissCounterTotal.WithLabelValues(operation).Inc()

	ch := p.sf.DoChan(key, func() (any, error) {
		start := time.Now()
		defer metrics.ObserveDuration(LookupDurationHistogram.WithLabelValues(operation), start)

		// The fetch is shared and outlives the context of the caller that started it.
		v, err := fetch(context.WithoutCancel(ctx))
		if err == nil || errors.Is(err, provider.ErrNotFound) {
			p.cache.Add(key, &result{value: v, err: err})
			CacheEntriesGauge.Set(float64(p.cache.Len()))
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Shared {
			CacheShareCounterTotal.WithLabelValues(operation).Inc()
			slogcontext.FromCtx(ctx).DebugContext(ctx, "shared in-flight lookup", slog.String("key", key))
		}
		return res.Val, res.Err
	}
}
