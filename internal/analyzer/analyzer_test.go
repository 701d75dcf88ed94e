package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/governor"
	"github.com/deskwise/deskwise/internal/provider"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/ticket"
)

type fakeProvider struct {
	text string
	err  error
	last *provider.Request
}

func (p *fakeProvider) Invoke(ctx context.Context, req *provider.Request) (*provider.Completion, error) {
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return &provider.Completion{
		Text:  p.text,
		Usage: provider.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
	}, nil
}

func (p *fakeProvider) DefaultModel() string { return "model-a" }

type fakeStore struct {
	analysis *store.TicketAnalysis
	scores   []store.ComplexityScore
}

func (s *fakeStore) SaveAnalysis(a *store.TicketAnalysis) error {
	s.analysis = a
	return nil
}

func (s *fakeStore) AddComplexityScore(c *store.ComplexityScore) error {
	s.scores = append(s.scores, *c)
	return nil
}

type nopLedger struct{}

func (nopLedger) CountRequestsAfter(time.Time) (int, error) { return 0, nil }
func (nopLedger) SpendSince(time.Time) (float64, error)     { return 0, nil }
func (nopLedger) AddUsageRecord(*store.UsageRecord) error   { return nil }

func testGovernor() *governor.Governor {
	return governor.New(config.RateLimitConfig{
		MaxRequestsPerMinute: 100,
		MaxTokensPerRequest:  100000,
	}, nopLedger{}, governor.PricingTable{"model-a": {InputPerMillionUSD: 1, OutputPerMillionUSD: 1}})
}

func testTicket() *ticket.Ticket {
	return &ticket.Ticket{
		ID:          42,
		Title:       "Cannot login",
		Description: "Password reset link expired",
		Category:    "support",
		Priority:    "medium",
	}
}

const goodReply = `{"complexity": 35, "category": "account", "priority": "medium",
	"confidence": 0.85, "tags": ["login", "password"],
	"estimated_resolution_hours": 0.5, "reasoning": "Routine password reset."}`

func TestAnalyzePersistsAnalysisAndScore(t *testing.T) {
	cfg := config.AIConfig{Model: "model-a", MaxTokens: 1024, Temperature: 0.2}
	st := &fakeStore{}
	a := New(cfg, &fakeProvider{text: goodReply}, testGovernor(), st, nil)

	got, err := a.Analyze(context.Background(), testTicket())
	if err != nil {
		t.Fatal(err)
	}
	if got.Complexity != 35 || got.Confidence != 0.85 || got.Category != "account" {
		t.Fatalf("unexpected analysis %+v", got)
	}
	if st.analysis == nil || st.analysis.TicketID != 42 {
		t.Fatalf("analysis not persisted: %+v", st.analysis)
	}
	if len(st.scores) != 1 || st.scores[0].Score != 35 || st.scores[0].TicketID != 42 {
		t.Fatalf("complexity score not persisted: %+v", st.scores)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	a := New(config.AIConfig{Model: "model-a"}, &fakeProvider{text: goodReply}, testGovernor(), &fakeStore{}, nil)

	cases := []func(*ticket.Ticket){
		func(tk *ticket.Ticket) { tk.Title = "" },
		func(tk *ticket.Ticket) { tk.Description = "   " },
		func(tk *ticket.Ticket) { tk.Category = "\t\n" },
		func(tk *ticket.Ticket) { tk.Priority = "" },
	}
	for i, mutate := range cases {
		tk := testTicket()
		mutate(tk)
		if _, err := a.Analyze(context.Background(), tk); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestAnalyzeProviderUnavailable(t *testing.T) {
	p := &fakeProvider{err: provider.ErrUnavailable}
	a := New(config.AIConfig{Model: "model-a"}, p, testGovernor(), &fakeStore{}, nil)

	_, err := a.Analyze(context.Background(), testTicket())
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

// A deadline expiring mid-call is an availability problem, not a caller
// error: it must surface as ErrUnavailable like any other backend failure.
func TestAnalyzeDeadlineMapsToUnavailable(t *testing.T) {
	p := &fakeProvider{err: context.DeadlineExceeded}
	a := New(config.AIConfig{Model: "model-a"}, p, testGovernor(), &fakeStore{}, nil)

	_, err := a.Analyze(context.Background(), testTicket())
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAnalyzeGovernorRefusal(t *testing.T) {
	gov := governor.New(config.RateLimitConfig{MaxRequestsPerMinute: 100, MaxTokensPerRequest: 1},
		nopLedger{}, governor.PricingTable{"model-a": {}})
	p := &fakeProvider{text: goodReply}
	a := New(config.AIConfig{Model: "model-a"}, p, gov, &fakeStore{}, nil)

	_, err := a.Analyze(context.Background(), testTicket())
	if !errors.Is(err, governor.ErrCostLimitExceeded) {
		t.Fatalf("expected governor refusal, got %v", err)
	}
	if p.last != nil {
		t.Fatal("refused call must not reach the provider")
	}
}

func TestParseAnalysisFencedAndClamped(t *testing.T) {
	fenced := "```json\n{\"complexity\": 250, \"category\": \"infra\", \"priority\": \"high\", \"confidence\": 1.7, \"reasoning\": \"x\"}\n```"
	got, err := parseAnalysis(fenced)
	if err != nil {
		t.Fatal(err)
	}
	if got.Complexity != 100 {
		t.Fatalf("complexity not clamped: %d", got.Complexity)
	}
	if got.Confidence != 1 {
		t.Fatalf("confidence not clamped: %f", got.Confidence)
	}

	if _, err := parseAnalysis("sorry, I cannot help with that"); err == nil {
		t.Fatal("prose reply must fail to parse")
	}
}
