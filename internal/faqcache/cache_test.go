package faqcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/store"
)

// memStore is an in-memory Store keyed by question hash.
type memStore struct {
	mu      sync.Mutex
	entries map[string]*store.FAQEntry
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]*store.FAQEntry{}}
}

func (m *memStore) LookupFAQ(hash string) (*store.FAQEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	e.HitCount++
	cp := *e
	return &cp, nil
}

func (m *memStore) InsertFAQ(e *store.FAQEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.QuestionHash]; ok {
		return nil
	}
	cp := *e
	m.entries[e.QuestionHash] = &cp
	return nil
}

func (m *memStore) FAQCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *memStore) EvictFAQOverCap(max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k := range m.entries {
		if len(m.entries) <= max {
			break
		}
		delete(m.entries, k)
		removed++
	}
	return removed, nil
}

func testCfg() config.FAQCacheConfig {
	return config.FAQCacheConfig{
		Enabled:         true,
		MinAnswerLength: 20,
		Eviction:        config.EvictionNone,
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"How do I reset my password?", "how do i reset my password"},
		{"  how DO i   reset my password!! ", "how do i reset my password"},
		{"HOW DO I RESET MY PASSWORD", "how do i reset my password"},
		{"", ""},
		{"???", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEquivalentQuestionsShareOneEntry(t *testing.T) {
	st := newMemStore()
	c := New(testCfg(), st, nil)

	gen := func(ctx context.Context, q string) (*Generated, error) {
		return &Generated{Text: "Open settings and click reset password."}, nil
	}

	first, err := c.GetOrGenerate(context.Background(), "How do I reset my password?", gen)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Fatal("first call must be a miss")
	}

	second, err := c.GetOrGenerate(context.Background(), "  how do i RESET my password ", gen)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Fatal("rephrased question should hit the cache")
	}
	if second.Text != first.Text {
		t.Fatalf("answers differ: %q vs %q", second.Text, first.Text)
	}
	if n, _ := st.FAQCount(); n != 1 {
		t.Fatalf("expected one entry, got %d", n)
	}
}

func TestShortAnswersAreNotCached(t *testing.T) {
	st := newMemStore()
	c := New(testCfg(), st, nil)

	gen := func(ctx context.Context, q string) (*Generated, error) {
		return &Generated{Text: "Yes."}, nil
	}
	ans, err := c.GetOrGenerate(context.Background(), "is the api up", gen)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Yes." {
		t.Fatalf("answer = %q", ans.Text)
	}
	if n, _ := st.FAQCount(); n != 0 {
		t.Fatalf("short answer should not be cached, got %d entries", n)
	}
}

func TestContextDependentAnswersAreNotCached(t *testing.T) {
	st := newMemStore()
	c := New(testCfg(), st, nil)

	gen := func(ctx context.Context, q string) (*Generated, error) {
		return &Generated{
			Text:             "Your specific ticket #4521 was closed because the disk was replaced.",
			ContextDependent: true,
		}, nil
	}
	if _, err := c.GetOrGenerate(context.Background(), "why was my ticket closed", gen); err != nil {
		t.Fatal(err)
	}
	if n, _ := st.FAQCount(); n != 0 {
		t.Fatalf("context-dependent answer should not be cached, got %d entries", n)
	}
}

func TestDisabledCacheAlwaysGenerates(t *testing.T) {
	st := newMemStore()
	cfg := testCfg()
	cfg.Enabled = false
	c := New(cfg, st, nil)

	var calls atomic.Int32
	gen := func(ctx context.Context, q string) (*Generated, error) {
		calls.Add(1)
		return &Generated{Text: "A long enough answer to otherwise be cached here."}, nil
	}
	for i := 0; i < 3; i++ {
		ans, err := c.GetOrGenerate(context.Background(), "same question", gen)
		if err != nil {
			t.Fatal(err)
		}
		if ans.Cached {
			t.Fatal("disabled cache must not report hits")
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 generations, got %d", calls.Load())
	}
}

func TestConcurrentMissesCoalesce(t *testing.T) {
	st := newMemStore()
	c := New(testCfg(), st, nil)

	var calls atomic.Int32
	gen := func(ctx context.Context, q string) (*Generated, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return &Generated{Text: "Restart the agent service from the admin console."}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrGenerate(context.Background(), "how do i restart the agent", gen); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one inference call, got %d", calls.Load())
	}
}

func TestGenerateErrorPropagates(t *testing.T) {
	c := New(testCfg(), newMemStore(), nil)
	boom := errors.New("model offline")
	_, err := c.GetOrGenerate(context.Background(), "anything", func(ctx context.Context, q string) (*Generated, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected generation error, got %v", err)
	}
}

func TestEvictionMaxEntries(t *testing.T) {
	st := newMemStore()
	cfg := testCfg()
	cfg.Eviction = config.EvictionMaxEntries
	cfg.MaxEntries = 2
	c := New(cfg, st, nil)

	gen := func(ctx context.Context, q string) (*Generated, error) {
		return &Generated{Text: "A distinct and sufficiently long answer body."}, nil
	}
	questions := []string{"question one", "question two", "question three"}
	for _, q := range questions {
		if _, err := c.GetOrGenerate(context.Background(), q, gen); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := st.FAQCount(); n > 2 {
		t.Fatalf("cache exceeded cap: %d entries", n)
	}
}
