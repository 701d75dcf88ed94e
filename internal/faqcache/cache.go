// Package faqcache deduplicates inference calls for recurring questions.
// Answers are keyed by a hash of the normalized question text, so trivial
// wording differences (case, punctuation, spacing) share one cache entry.
package faqcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/store"
)

// Store is the persistence surface the cache needs.
type Store interface {
	LookupFAQ(hash string) (*store.FAQEntry, error)
	InsertFAQ(e *store.FAQEntry) error
	FAQCount() (int, error)
	EvictFAQOverCap(max int) (int, error)
}

// Generated is a freshly produced answer. ContextDependent marks answers
// that reference ticket-specific state and must not be served to anyone
// else.
type Generated struct {
	Text             string
	ContextDependent bool
}

// GenerateFunc produces an answer for a cache miss.
type GenerateFunc func(ctx context.Context, question string) (*Generated, error)

// Answer is the cache's reply to a question.
type Answer struct {
	Text   string
	Cached bool
	Hash   string
}

// Cache fronts the FAQ table with question normalization and single-flight
// generation: concurrent misses on the same question share one inference
// call.
type Cache struct {
	cfg   config.FAQCacheConfig
	store Store
	log   *slog.Logger

	group singleflight.Group
}

// New creates a Cache over the given store.
func New(cfg config.FAQCacheConfig, st Store, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{cfg: cfg, store: st, log: log}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]+`)
var spaces = regexp.MustCompile(`\s+`)

// Normalize maps a question to its canonical lookup form: lowercase,
// punctuation stripped, whitespace collapsed.
func Normalize(question string) string {
	q := strings.ToLower(question)
	q = nonAlnum.ReplaceAllString(q, "")
	q = spaces.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// Hash returns the cache key for a normalized question.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached entry for a question without generating
// anything. A hit increments the entry's hit counter.
func (c *Cache) Lookup(question string) (*store.FAQEntry, error) {
	return c.store.LookupFAQ(Hash(Normalize(question)))
}

// GetOrGenerate answers a question from the cache, falling back to gen on
// a miss. Generated answers are cached only when they are long enough to
// be substantive and do not depend on ticket context.
func (c *Cache) GetOrGenerate(ctx context.Context, question string, gen GenerateFunc) (*Answer, error) {
	if !c.cfg.Enabled {
		out, err := gen(ctx, question)
		if err != nil {
			return nil, err
		}
		return &Answer{Text: out.Text}, nil
	}

	normalized := Normalize(question)
	hash := Hash(normalized)

	v, err, _ := c.group.Do(hash, func() (any, error) {
		entry, err := c.store.LookupFAQ(hash)
		if err == nil {
			return &Answer{Text: entry.Answer, Cached: true, Hash: hash}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		out, err := gen(ctx, question)
		if err != nil {
			return nil, err
		}
		if c.cacheable(out) {
			if err := c.insert(hash, normalized, question, out.Text); err != nil {
				// A failed write does not invalidate the answer.
				c.log.Warn("faq cache write failed", "hash", hash, "error", err)
			}
		}
		return &Answer{Text: out.Text, Hash: hash}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Answer), nil
}

func (c *Cache) cacheable(out *Generated) bool {
	if out.ContextDependent {
		return false
	}
	return len(out.Text) >= c.cfg.MinAnswerLength
}

func (c *Cache) insert(hash, normalized, original, answer string) error {
	now := time.Now().UTC()
	if err := c.store.InsertFAQ(&store.FAQEntry{
		QuestionHash:       hash,
		NormalizedQuestion: normalized,
		OriginalQuestion:   original,
		Answer:             answer,
		CreatedAt:          now,
		LastHitAt:          now,
	}); err != nil {
		return err
	}
	return c.evict()
}

// evict applies the configured eviction policy after an insert. The
// default policy keeps everything.
func (c *Cache) evict() error {
	switch c.cfg.Eviction {
	case "", config.EvictionNone:
		return nil
	case config.EvictionMaxEntries:
		removed, err := c.store.EvictFAQOverCap(c.cfg.MaxEntries)
		if err != nil {
			return err
		}
		if removed > 0 {
			c.log.Info("faq cache evicted entries", "removed", removed, "cap", c.cfg.MaxEntries)
		}
		return nil
	default:
		return nil
	}
}
