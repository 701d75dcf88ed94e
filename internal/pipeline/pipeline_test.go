package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deskwise/deskwise/internal/analyzer"
	"github.com/deskwise/deskwise/internal/autoresponse"
	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/faqcache"
	"github.com/deskwise/deskwise/internal/feedback"
	"github.com/deskwise/deskwise/internal/governor"
	"github.com/deskwise/deskwise/internal/learning"
	"github.com/deskwise/deskwise/internal/notify"
	"github.com/deskwise/deskwise/internal/provider"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/ticket"
)

// fakeTickets is an in-memory ticket store tracking comments and updates.
type fakeTickets struct {
	mu       sync.Mutex
	tickets  map[int64]*ticket.Ticket
	comments []ticket.Comment
	updates  []ticket.Update
}

func (f *fakeTickets) GetTicket(ctx context.Context, id int64) (*ticket.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, errors.New("ticket not found")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) UpdateTicket(ctx context.Context, id int64, u ticket.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	if u.TeamID != nil {
		f.tickets[id].TeamID = *u.TeamID
	}
	return nil
}

func (f *fakeTickets) CreateComment(ctx context.Context, ticketID int64, content string, isSystem bool) (*ticket.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := ticket.Comment{ID: int64(len(f.comments) + 1), TicketID: ticketID, Content: content, IsSystem: isSystem}
	f.comments = append(f.comments, c)
	return &c, nil
}

func (f *fakeTickets) ListComments(ctx context.Context, ticketID int64) ([]ticket.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ticket.Comment
	for _, c := range f.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

// scriptedProvider returns an analysis reply for analysis prompts and a
// plain response otherwise, counting invocations.
type scriptedProvider struct {
	mu         sync.Mutex
	confidence float64
	calls      int
}

func (p *scriptedProvider) Invoke(ctx context.Context, req *provider.Request) (*provider.Completion, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	text := "Please request a fresh reset link from the login page and retry within an hour."
	if reqWantsAnalysis(req) {
		text = fmt.Sprintf(`{"complexity": 80, "category": "support", "priority": "medium",
			"confidence": %.2f, "tags": ["login"], "estimated_resolution_hours": 0.5,
			"reasoning": "Expired reset link."}`, p.confidence)
	}
	return &provider.Completion{Text: text, Usage: provider.Usage{InputTokens: 100, OutputTokens: 60, TotalTokens: 160}}, nil
}

func (p *scriptedProvider) DefaultModel() string { return "model-a" }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func reqWantsAnalysis(req *provider.Request) bool {
	return strings.Contains(req.System, "triage")
}

type env struct {
	p       *Pipeline
	tickets *fakeTickets
	st      *store.Service
	prov    *scriptedProvider
}

func newEnv(t *testing.T, mutate func(cfg *config.Config)) *env {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AI.Model = "model-a"
	cfg.FAQCache.MinAnswerLength = 20
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.New(t.TempDir() + "/deskwise.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	tickets := &fakeTickets{tickets: map[int64]*ticket.Ticket{}}
	prov := &scriptedProvider{confidence: 0.85}

	pricing := governor.PricingTable{"model-a": {InputPerMillionUSD: 3, OutputPerMillionUSD: 15}}
	gov := governor.New(cfg.RateLimit, st, pricing)
	cache := faqcache.New(cfg.FAQCache, st, nil)
	an := analyzer.New(cfg.AI, prov, gov, st, nil)
	gen := autoresponse.New(cfg.AI, prov, gov, cache, st, nil)
	tracker := feedback.New(st, nil)
	job := learning.New(cfg.Learning, cfg.AI, tickets, prov, gov, st, nil)
	bus := notify.NewBus(nil)

	return &env{
		p:       New(cfg, tickets, an, gen, cache, tracker, job, st, bus, nil, nil),
		tickets: tickets,
		st:      st,
		prov:    prov,
	}
}

func loginTicket(id int64) *ticket.Ticket {
	return &ticket.Ticket{
		ID:          id,
		Title:       "Cannot login",
		Description: "Password reset link expired",
		Category:    "support",
		Priority:    "medium",
		Status:      ticket.StatusOpen,
	}
}

// Scenario A: high confidence produces a response that is auto-applied as
// a system comment.
func TestHighConfidenceAutoApplies(t *testing.T) {
	e := newEnv(t, nil)
	e.tickets.tickets[1] = loginTicket(1)
	e.prov.confidence = 0.85

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if len(e.tickets.comments) != 1 || !e.tickets.comments[0].IsSystem {
		t.Fatalf("expected one system comment, got %+v", e.tickets.comments)
	}
	resp, err := e.st.GetAutoResponse(1)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.WasApplied {
		t.Fatal("response should be marked applied")
	}
}

// Scenario B: low confidence holds the response back entirely.
func TestLowConfidenceLeavesTicketForHumans(t *testing.T) {
	e := newEnv(t, nil)
	e.tickets.tickets[1] = loginTicket(1)
	e.prov.confidence = 0.4

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if len(e.tickets.comments) != 0 {
		t.Fatalf("no comment should be posted, got %+v", e.tickets.comments)
	}
	if _, err := e.st.GetAutoResponse(1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no response should be stored, got %v", err)
	}
	// The analysis and complexity score still land.
	if _, err := e.st.GetAnalysis(1); err != nil {
		t.Fatalf("analysis should persist regardless: %v", err)
	}
}

// Gate between thresholds: generated but not auto-applied when the
// auto-apply knob is raised above the confidence knob.
func TestIndependentAutoApplyThreshold(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.AI.ConfidenceThreshold = 0.70
		cfg.AI.AutoApplyThreshold = 0.90
	})
	e.tickets.tickets[1] = loginTicket(1)
	e.prov.confidence = 0.85

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	resp, err := e.st.GetAutoResponse(1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.WasApplied {
		t.Fatal("response must not auto-apply below the apply threshold")
	}
	if len(e.tickets.comments) != 0 {
		t.Fatal("no system comment expected")
	}
}

// A redelivered creation webhook must not pile up unapplied drafts: the
// ticket keeps exactly one.
func TestReprocessKeepsSingleUnappliedDraft(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.AI.ConfidenceThreshold = 0.70
		cfg.AI.AutoApplyThreshold = 0.95
	})
	e.tickets.tickets[1] = loginTicket(1)
	e.prov.confidence = 0.85

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	var unapplied int
	if err := e.st.DB().QueryRow(`SELECT COUNT(1) FROM auto_responses WHERE ticket_id = 1 AND was_applied = 0`).Scan(&unapplied); err != nil {
		t.Fatal(err)
	}
	if unapplied != 1 {
		t.Fatalf("unapplied drafts = %d, want 1", unapplied)
	}
}

// High complexity routes the ticket to the matching team.
func TestEscalationAssignsTeam(t *testing.T) {
	e := newEnv(t, nil)
	e.tickets.tickets[1] = loginTicket(1)
	if err := e.st.UpsertEscalationRule(&store.EscalationRule{ID: 1, ComplexityThreshold: 75, TeamID: 9, Priority: 1, Enabled: true}); err != nil {
		t.Fatal(err)
	}

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if e.tickets.tickets[1].TeamID != 9 {
		t.Fatalf("team = %d, want 9", e.tickets.tickets[1].TeamID)
	}
}

// With no matching rule the configured default team catches the ticket.
func TestEscalationFallsBackToDefaultTeam(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.Escalation.ComplexityThreshold = 75
		cfg.Escalation.DefaultTeamID = 3
	})
	e.tickets.tickets[1] = loginTicket(1)

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if e.tickets.tickets[1].TeamID != 3 {
		t.Fatalf("team = %d, want default team 3", e.tickets.tickets[1].TeamID)
	}
}

// Scenario C: the same question twice costs one inference call.
func TestRepeatQuestionHitsCache(t *testing.T) {
	e := newEnv(t, nil)
	e.tickets.tickets[1] = loginTicket(1)
	e.tickets.tickets[2] = loginTicket(2)

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := e.prov.callCount()

	if err := e.p.ProcessTicket(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	// Second ticket needs its own analysis call but no generation call.
	if got := e.prov.callCount(); got != callsAfterFirst+1 {
		t.Fatalf("calls after second ticket = %d, want %d", got, callsAfterFirst+1)
	}

	entry, err := e.p.CachedAnswer("cannot login password reset link expired")
	if err != nil {
		t.Fatal(err)
	}
	if entry.HitCount < 1 {
		t.Fatalf("hit count = %d", entry.HitCount)
	}
}

// Scenario D: the second analyze call in the same minute is refused.
func TestRateLimitRefusesSecondCall(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.MaxRequestsPerMinute = 1
		cfg.FAQCache.Enabled = false
	})
	e.tickets.tickets[1] = loginTicket(1)
	e.tickets.tickets[2] = loginTicket(2)
	e.prov.confidence = 0.4 // keep it to one inference call per ticket

	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	err := e.p.ProcessTicket(context.Background(), 2)
	if !errors.Is(err, governor.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

// The async side branch never propagates a failure.
func TestSideBranchSwallowsFailures(t *testing.T) {
	e := newEnv(t, nil)
	// Ticket 99 does not exist; the branch must log and finish.
	done := make(chan struct{})
	e.p.OnTicketCreated(context.Background(), 99, done)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("side branch did not finish")
	}
}

func TestResolvedEnqueueIsIdempotent(t *testing.T) {
	e := newEnv(t, nil)
	if err := e.p.OnTicketResolved(7); err != nil {
		t.Fatal(err)
	}
	if err := e.p.OnTicketResolved(7); err != nil {
		t.Fatal(err)
	}
	item, err := e.st.GetLearningItem(7)
	if err != nil {
		t.Fatal(err)
	}
	if item.ProcessStatus != store.LearningPending {
		t.Fatalf("status = %s", item.ProcessStatus)
	}
	counts, err := e.st.LearningCounts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[store.LearningPending] != 1 {
		t.Fatalf("pending = %d, want 1", counts[store.LearningPending])
	}
}

func TestRecordFeedbackRoundTrip(t *testing.T) {
	e := newEnv(t, nil)
	e.tickets.tickets[1] = loginTicket(1)
	if err := e.p.ProcessTicket(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	resp, err := e.st.GetAutoResponse(1)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.p.RecordFeedback(feedback.KindAutoResponse, resp.ID, feedback.RatingHelpful); err != nil {
		t.Fatal(err)
	}
	got, err := e.st.GetAutoResponseByID(resp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.WasHelpful == nil || !*got.WasHelpful {
		t.Fatal("wasHelpful not recorded")
	}
}
