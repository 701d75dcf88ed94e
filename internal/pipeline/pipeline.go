// Package pipeline wires ticket events to the intelligence components:
// analysis, auto-response, escalation, the FAQ cache, feedback, and the
// learning queue. It is the only package the routing layer talks to.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/deskwise/deskwise/internal/analyzer"
	"github.com/deskwise/deskwise/internal/autoresponse"
	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/escalation"
	"github.com/deskwise/deskwise/internal/faqcache"
	"github.com/deskwise/deskwise/internal/feedback"
	"github.com/deskwise/deskwise/internal/learning"
	"github.com/deskwise/deskwise/internal/notify"
	"github.com/deskwise/deskwise/internal/schedule"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/ticket"
)

// Store is the persistence surface the pipeline itself needs, beyond what
// its components own.
type Store interface {
	ListEscalationRules() ([]store.EscalationRule, error)
	HasAppliedResponse(ticketID int64) (bool, error)
	MarkResponseApplied(id int64) error
	EnqueueLearning(ticketID int64) (bool, error)
}

// Pipeline composes the intelligence components behind ticket events.
type Pipeline struct {
	cfg       *config.Config
	tickets   ticket.Store
	analyzer  *analyzer.Analyzer
	generator *autoresponse.Generator
	cache     *faqcache.Cache
	tracker   *feedback.Tracker
	job       *learning.Job
	store     Store
	bus       *notify.Bus
	sem       *schedule.Semaphore
	log       *slog.Logger
}

// New creates a Pipeline. sem bounds how many ticket side branches run at
// once; nil means at most four.
func New(cfg *config.Config, tickets ticket.Store, an *analyzer.Analyzer, gen *autoresponse.Generator,
	cache *faqcache.Cache, tracker *feedback.Tracker, job *learning.Job, st Store,
	bus *notify.Bus, sem *schedule.Semaphore, log *slog.Logger) *Pipeline {
	if sem == nil {
		sem = schedule.NewSemaphore(4)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		tickets:   tickets,
		analyzer:  an,
		generator: gen,
		cache:     cache,
		tracker:   tracker,
		job:       job,
		store:     st,
		bus:       bus,
		sem:       sem,
		log:       log,
	}
}

// OnTicketCreated kicks off the intelligence side branch for a new ticket.
// It never blocks and never fails: the primary ticket write has already
// succeeded, and anything that goes wrong here is logged as a partial
// failure only. done (may be nil) is closed when the branch finishes,
// which tests use to synchronize.
func (p *Pipeline) OnTicketCreated(ctx context.Context, ticketID int64, done chan<- struct{}) {
	if !p.sem.TryAcquire() {
		p.log.Warn("analysis side branch skipped, concurrency limit", "ticket_id", ticketID)
		if done != nil {
			close(done)
		}
		return
	}
	go func() {
		defer p.sem.Release()
		if done != nil {
			defer close(done)
		}
		if err := p.ProcessTicket(ctx, ticketID); err != nil {
			p.log.Error("partial failure in ticket side branch", "ticket_id", ticketID, "error", err)
		}
	}()
}

// ProcessTicket runs the full analysis branch synchronously: analyze,
// maybe respond, maybe escalate. Exposed for the side-branch goroutine and
// for callers that want the result inline.
func (p *Pipeline) ProcessTicket(ctx context.Context, ticketID int64) error {
	t, err := p.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("fetch ticket: %w", err)
	}

	analysis, err := p.analyzer.Analyze(ctx, t)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if err := p.respond(ctx, t, analysis); err != nil {
		// Escalation still runs; a response failure is not a routing failure.
		p.log.Warn("response stage failed", "ticket_id", ticketID, "error", err)
	}

	if err := p.escalate(ctx, t, analysis); err != nil {
		return fmt.Errorf("escalate: %w", err)
	}
	return nil
}

// respond generates an auto-response and applies it as a system comment
// when the analysis confidence clears the auto-apply threshold.
func (p *Pipeline) respond(ctx context.Context, t *ticket.Ticket, analysis *store.TicketAnalysis) error {
	applied, err := p.store.HasAppliedResponse(t.ID)
	if err != nil {
		return err
	}
	if applied {
		p.log.Info("ticket already has an applied response", "ticket_id", t.ID)
		return nil
	}

	resp, err := p.generator.Generate(ctx, t, analysis)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil // held back for human handling
	}

	if analysis.Confidence >= p.cfg.AI.AutoApplyThreshold {
		if _, err := p.tickets.CreateComment(ctx, t.ID, resp.ResponseText, true); err != nil {
			return fmt.Errorf("apply comment: %w", err)
		}
		if err := p.store.MarkResponseApplied(resp.ID); err != nil {
			return fmt.Errorf("mark applied: %w", err)
		}
		p.log.Info("response auto-applied", "ticket_id", t.ID, "response_id", resp.ID)
	}

	p.bus.Publish(&notify.Event{
		Type:     notify.EventResponseGenerated,
		TicketID: t.ID,
		Payload: map[string]any{
			"response_id": resp.ID,
			"confidence":  resp.ConfidenceScore,
			"applied":     analysis.Confidence >= p.cfg.AI.AutoApplyThreshold,
		},
	})
	return nil
}

// escalate routes the ticket if its complexity clears the threshold and a
// rule matches.
func (p *Pipeline) escalate(ctx context.Context, t *ticket.Ticket, analysis *store.TicketAnalysis) error {
	rules, err := p.store.ListEscalationRules()
	if err != nil {
		return err
	}
	decision := escalation.Evaluate(analysis.Complexity, p.cfg.Escalation.ComplexityThreshold,
		p.cfg.Escalation.DefaultTeamID, rules)
	if !decision.ShouldEscalate {
		return nil
	}

	teamID := decision.TeamID
	if err := p.tickets.UpdateTicket(ctx, t.ID, ticket.Update{TeamID: &teamID}); err != nil {
		return fmt.Errorf("assign team: %w", err)
	}
	p.log.Info("ticket escalated", "ticket_id", t.ID, "team_id", teamID, "rule_id", decision.RuleID)

	p.bus.Publish(&notify.Event{
		Type:     notify.EventTicketEscalated,
		TicketID: t.ID,
		Payload: map[string]any{
			"team_id":    teamID,
			"rule_id":    decision.RuleID,
			"complexity": analysis.Complexity,
		},
	})
	return nil
}

// EvaluateEscalation exposes the pure escalation decision for a raw score.
func (p *Pipeline) EvaluateEscalation(score int) (escalation.Decision, error) {
	rules, err := p.store.ListEscalationRules()
	if err != nil {
		return escalation.Decision{}, err
	}
	return escalation.Evaluate(score, p.cfg.Escalation.ComplexityThreshold,
		p.cfg.Escalation.DefaultTeamID, rules), nil
}

// OnTicketResolved enqueues the ticket for the learning job. Duplicate
// resolve events are no-ops.
func (p *Pipeline) OnTicketResolved(ticketID int64) error {
	created, err := p.store.EnqueueLearning(ticketID)
	if err != nil {
		return fmt.Errorf("enqueue learning: %w", err)
	}
	if created {
		p.log.Info("ticket queued for learning", "ticket_id", ticketID)
	}
	return nil
}

// CachedAnswer serves a question straight from the FAQ cache. A miss is
// reported as store.ErrNotFound; no inference is triggered.
func (p *Pipeline) CachedAnswer(question string) (*store.FAQEntry, error) {
	return p.cache.Lookup(question)
}

// RecordFeedback applies one rating to an auto-response or article.
func (p *Pipeline) RecordFeedback(kind string, id int64, rating int) error {
	return p.tracker.Record(kind, id, rating)
}

// RunLearningPass triggers one learning pass and emits a summary event.
// An already-running pass returns learning.ErrAlreadyRunning untouched.
func (p *Pipeline) RunLearningPass(ctx context.Context) (*learning.PassResult, error) {
	result, err := p.job.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, learning.ErrAlreadyRunning) {
			return nil, err
		}
		return nil, fmt.Errorf("learning pass: %w", err)
	}
	p.bus.Publish(&notify.Event{
		Type: notify.EventLearningPassFinished,
		Payload: map[string]any{
			"patterns_found":     result.PatternsFound,
			"articles_created":   result.ArticlesCreated,
			"articles_published": result.ArticlesPublished,
		},
	})
	if pending := result.ArticlesCreated - result.ArticlesPublished; pending > 0 {
		p.bus.Publish(&notify.Event{
			Type:    notify.EventArticlePendingReview,
			Payload: map[string]any{"awaiting_approval": pending},
		})
	}
	return result, nil
}
