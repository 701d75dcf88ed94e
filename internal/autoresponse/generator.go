// Package autoresponse drafts customer-facing replies for analyzed tickets.
// Generation is gated on the analysis confidence and bounded by a wall-clock
// timeout; a held-back response is a normal outcome, not an error.
package autoresponse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/faqcache"
	"github.com/deskwise/deskwise/internal/governor"
	"github.com/deskwise/deskwise/internal/provider"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/ticket"
)

// ErrTimeout signals the bounded generation wait was exceeded. Callers fall
// back to human handling and must not retry within the same request.
var ErrTimeout = errors.New("response generation timed out")

// Store is the persistence surface the generator needs.
type Store interface {
	InsertAutoResponse(r *store.AutoResponse) error
	SearchArticles(category string, limit int) ([]store.KnowledgeArticle, error)
	IncrementArticleUsage(id int64) error
}

// Generator produces auto-responses from completed analyses.
type Generator struct {
	cfg      config.AIConfig
	provider provider.Provider
	gov      *governor.Governor
	cache    *faqcache.Cache
	store    Store
	log      *slog.Logger
}

// New creates a Generator. cache may be nil to disable FAQ participation.
func New(cfg config.AIConfig, p provider.Provider, gov *governor.Governor, cache *faqcache.Cache, st Store, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{cfg: cfg, provider: p, gov: gov, cache: cache, store: st, log: log}
}

const responseSystemPrompt = `You are a helpdesk support assistant. Write a concise, polite reply that resolves the customer's issue. Use the reference articles when relevant. Reply with the response text only, no preamble.`

// Generate drafts a response for the ticket. A nil response with a nil
// error means the confidence gate held the ticket back for human handling.
// The exact threshold value attempts generation.
func (g *Generator) Generate(ctx context.Context, t *ticket.Ticket, analysis *store.TicketAnalysis) (*store.AutoResponse, error) {
	if analysis.Confidence < g.cfg.ConfidenceThreshold {
		g.log.Info("response held back by confidence gate",
			"ticket_id", t.ID,
			"confidence", analysis.Confidence,
			"threshold", g.cfg.ConfidenceThreshold)
		return nil, nil
	}

	timeout := g.cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	articles, err := g.store.SearchArticles(analysis.Category, 3)
	if err != nil {
		g.log.Warn("article search failed", "ticket_id", t.ID, "error", err)
		articles = nil
	}

	text, err := g.draft(ctx, t, articles)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %s", ErrTimeout, timeout)
		}
		return nil, err
	}

	// The length cap counts characters, not bytes; slicing bytes could
	// split a multi-byte rune and persist invalid UTF-8.
	if g.cfg.MaxResponseLength > 0 {
		if r := []rune(text); len(r) > g.cfg.MaxResponseLength {
			text = string(r[:g.cfg.MaxResponseLength])
		}
	}

	resp := &store.AutoResponse{
		TicketID:            t.ID,
		ResponseText:        text,
		ConfidenceScore:     analysis.Confidence,
		SuggestedArticleIDs: articleIDs(articles),
		CreatedAt:           time.Now().UTC(),
	}
	if err := g.store.InsertAutoResponse(resp); err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}
	for _, id := range resp.SuggestedArticleIDs {
		if err := g.store.IncrementArticleUsage(id); err != nil {
			g.log.Warn("article usage bump failed", "article_id", id, "error", err)
		}
	}

	g.log.Info("response generated",
		"ticket_id", t.ID,
		"confidence", analysis.Confidence,
		"length", len(text),
		"suggested_articles", len(resp.SuggestedArticleIDs))
	return resp, nil
}

// draft requests generated text through the governor. When articles are
// referenced the answer depends on ticket context, so it routes around the
// FAQ cache; plain question-shaped tickets go through it.
func (g *Generator) draft(ctx context.Context, t *ticket.Ticket, articles []store.KnowledgeArticle) (string, error) {
	prompt := g.buildPrompt(t, articles)

	if g.cache != nil && len(articles) == 0 {
		ans, err := g.cache.GetOrGenerate(ctx, t.Title+" "+t.Description, func(ctx context.Context, _ string) (*faqcache.Generated, error) {
			text, err := g.invoke(ctx, prompt)
			if err != nil {
				return nil, err
			}
			return &faqcache.Generated{Text: text}, nil
		})
		if err != nil {
			return "", err
		}
		if ans.Cached {
			g.log.Info("response served from faq cache", "ticket_id", t.ID)
		}
		return ans.Text, nil
	}

	return g.invoke(ctx, prompt)
}

func (g *Generator) invoke(ctx context.Context, prompt string) (string, error) {
	model := g.cfg.Model
	if model == "" {
		model = g.provider.DefaultModel()
	}
	res, err := g.gov.Admit(model, provider.EstimateTokens(responseSystemPrompt+prompt))
	if err != nil {
		return "", err
	}
	out, err := g.provider.Invoke(ctx, &provider.Request{
		System:      responseSystemPrompt,
		Prompt:      prompt,
		Model:       model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		res.Cancel()
		return "", err
	}
	if err := g.gov.Record(res, out.Usage, ""); err != nil {
		g.log.Warn("usage record failed", "error", err)
	}
	return strings.TrimSpace(out.Text), nil
}

func (g *Generator) buildPrompt(t *ticket.Ticket, articles []store.KnowledgeArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket: %s\n", strings.TrimSpace(t.Title))
	fmt.Fprintf(&b, "Details:\n%s\n", strings.TrimSpace(t.Description))
	if len(articles) > 0 {
		b.WriteString("\nReference articles:\n")
		for _, a := range articles {
			fmt.Fprintf(&b, "- %s: %s\n", a.Title, a.Content)
		}
	}
	return b.String()
}

func articleIDs(articles []store.KnowledgeArticle) []int64 {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	return ids
}
