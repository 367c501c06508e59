package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"md2html/internal/infra/logging"
)

const (
	keyPrefix = "md2html:"

	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Renderer is the converter being cached. Fingerprint must change whenever
// the renderer would produce different HTML for the same input.
type Renderer interface {
	Render(markdown string) (string, error)
	Fingerprint() string
}

// LookupObserver is told the result of every cache lookup.
type LookupObserver interface {
	ObserveCacheLookup(result string)
}

// Converter serves renders from a Store and fills it on misses. Store
// failures are logged and the render proceeds uncached.
type Converter struct {
	next     Renderer
	store    Store
	ttl      time.Duration
	timeout  time.Duration
	observer LookupObserver
}

// NewConverter wraps next. A ttl <= 0 means one minute. observer may be nil.
func NewConverter(next Renderer, store Store, ttl time.Duration, observer LookupObserver) *Converter {
	if ttl <= 0 {
		ttl = 1 * time.Minute
	}
	return &Converter{
		next:     next,
		store:    store,
		ttl:      ttl,
		timeout:  1 * time.Second,
		observer: observer,
	}
}

func (c *Converter) Render(markdown string) (string, error) {
	key := Key(c.next.Fingerprint(), markdown)

	if cached, ok := c.get(key); ok {
		return cached, nil
	}

	html, err := c.next.Render(markdown)
	if err != nil {
		return "", err
	}
	c.set(key, html)
	return html, nil
}

func (c *Converter) Fingerprint() string {
	return c.next.Fingerprint()
}

func (c *Converter) get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cached, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		logging.Warn("Cache read failed", "error", err)
		c.observe(LookupError)
		return "", false
	case cached == nil:
		c.observe(LookupMiss)
		return "", false
	}
	c.observe(LookupHit)
	return string(cached), true
}

func (c *Converter) set(key, html string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.store.Set(ctx, key, []byte(html), c.ttl); err != nil {
		logging.Warn("Cache write failed", "error", err)
	}
}

func (c *Converter) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveCacheLookup(result)
	}
}

// Key derives the cache key for markdown rendered under fingerprint.
func Key(fingerprint, markdown string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(markdown))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
