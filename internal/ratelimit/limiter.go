package ratelimit

import (
	"context"
	"sync"

	"github.com/kaze-mesh/kaze/internal/metrics"
)

// Config configures the composite limiter. Each field is independently
// optional (spec.md §4.5).
type Config struct {
	Total            BucketConfig `toml:"total"`
	PerIdent         BucketConfig `toml:"per_ident"`
	PerBodyType      BucketConfig `toml:"per_body_type"`
	PerIdentBodyType BucketConfig `toml:"per_ident_body_type"`
}

type identBodyKey struct {
	ident    uint32
	bodyType string
}

// Limiter composes up to four token buckets. Acquire limits every call
// made to it and does not look at a packet's destination. cmd/kaze
// calls it (through RateLimitStage) on packets the host submits, before
// dispatch; packets received from peers are not limited, and
// host-submitted packets are limited whether or not their destination
// is the local host.
type Limiter struct {
	cfg Config
	m   *metrics.Metrics

	total *bucket

	mu               sync.Mutex
	perIdent         map[uint32]*bucket
	perBodyType      map[string]*bucket
	perIdentBodyType map[identBodyKey]*bucket
}

// New builds a Limiter from cfg. Metrics, if non-nil, is incremented
// once per Acquire call that took a token from at least one enabled
// bucket, whether or not it had to wait.
func New(cfg Config, m *metrics.Metrics) *Limiter {
	l := &Limiter{
		cfg:              cfg,
		m:                m,
		perIdent:         make(map[uint32]*bucket),
		perBodyType:      make(map[string]*bucket),
		perIdentBodyType: make(map[identBodyKey]*bucket),
	}
	if cfg.Total.enabled() {
		l.total = newBucket(cfg.Total)
	}
	return l
}

func (l *Limiter) bucketFor(m map[string]*bucket, key string, cfg BucketConfig) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := m[key]
	if !ok {
		b = newBucket(cfg)
		m[key] = b
	}
	return b
}

func (l *Limiter) identBucket(ident uint32) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.perIdent[ident]
	if !ok {
		b = newBucket(l.cfg.PerIdent)
		l.perIdent[ident] = b
	}
	return b
}

func (l *Limiter) identBodyBucket(key identBodyKey) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.perIdentBodyType[key]
	if !ok {
		b = newBucket(l.cfg.PerIdentBodyType)
		l.perIdentBodyType[key] = b
	}
	return b
}

// Acquire waits for one token from every enabled bucket, in the fixed
// order total -> per-ident -> per-body-type -> per-(ident,body-type), per
// spec.md §4.5.
func (l *Limiter) Acquire(ctx context.Context, ident uint32, bodyType string) error {
	limited := false

	if l.total != nil {
		if err := l.total.acquire(ctx); err != nil {
			return err
		}
		limited = true
	}
	if l.cfg.PerIdent.enabled() {
		if err := l.identBucket(ident).acquire(ctx); err != nil {
			return err
		}
		limited = true
	}
	if l.cfg.PerBodyType.enabled() {
		if err := l.bucketFor(l.perBodyType, bodyType, l.cfg.PerBodyType).acquire(ctx); err != nil {
			return err
		}
		limited = true
	}
	if l.cfg.PerIdentBodyType.enabled() {
		key := identBodyKey{ident: ident, bodyType: bodyType}
		if err := l.identBodyBucket(key).acquire(ctx); err != nil {
			return err
		}
		limited = true
	}

	if limited && l.m != nil {
		l.m.RateLimitTotal.Inc()
	}
	return nil
}

// Close stops every bucket's refill goroutine.
func (l *Limiter) Close() {
	if l.total != nil {
		l.total.close()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.perIdent {
		b.close()
	}
	for _, b := range l.perBodyType {
		b.close()
	}
	for _, b := range l.perIdentBodyType {
		b.close()
	}
}
