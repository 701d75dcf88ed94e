// Package analyzer classifies tickets via the external inference capability.
// Analysis is best-effort: callers must treat a failure here as advisory and
// never block ticket persistence on it.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/governor"
	"github.com/deskwise/deskwise/internal/provider"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/ticket"
)

// ErrValidation marks ticket input rejected before any inference call.
var ErrValidation = errors.New("invalid ticket input")

// Store is the persistence surface the analyzer writes to.
type Store interface {
	SaveAnalysis(a *store.TicketAnalysis) error
	AddComplexityScore(c *store.ComplexityScore) error
}

// Analyzer turns a ticket's text into a TicketAnalysis.
type Analyzer struct {
	cfg      config.AIConfig
	provider provider.Provider
	gov      *governor.Governor
	store    Store
	log      *slog.Logger
}

// New creates an Analyzer.
func New(cfg config.AIConfig, p provider.Provider, gov *governor.Governor, st Store, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{cfg: cfg, provider: p, gov: gov, store: st, log: log}
}

const analysisSystemPrompt = `You are a helpdesk triage assistant. Analyze the ticket and respond with a single JSON object, no prose, with these fields:
{"complexity": <int 0-100>, "category": "<string>", "priority": "<low|medium|high|urgent>", "confidence": <float 0-1>, "tags": ["<string>"], "estimated_resolution_hours": <float>, "reasoning": "<one sentence>"}`

// Analyze classifies the ticket and persists the analysis plus one
// complexity score record. Returns ErrValidation for empty required fields
// and provider.ErrUnavailable when the inference backend cannot serve.
func (a *Analyzer) Analyze(ctx context.Context, t *ticket.Ticket) (*store.TicketAnalysis, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	model := a.cfg.Model
	if model == "" {
		model = a.provider.DefaultModel()
	}
	prompt := buildPrompt(t)

	res, err := a.gov.Admit(model, provider.EstimateTokens(analysisSystemPrompt+prompt))
	if err != nil {
		return nil, err
	}

	out, err := a.provider.Invoke(ctx, &provider.Request{
		System:      analysisSystemPrompt,
		Prompt:      prompt,
		Model:       model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		res.Cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
		}
		return nil, err
	}
	if err := a.gov.Record(res, out.Usage, userID(t)); err != nil {
		a.log.Warn("usage record failed", "ticket_id", t.ID, "error", err)
	}

	analysis, err := parseAnalysis(out.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	analysis.TicketID = t.ID
	analysis.ModelID = model
	analysis.CreatedAt = time.Now().UTC()

	if err := a.store.SaveAnalysis(analysis); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	if err := a.store.AddComplexityScore(&store.ComplexityScore{
		TicketID:  t.ID,
		Score:     analysis.Complexity,
		Factors:   map[string]float64{"confidence": analysis.Confidence, "estimated_hours": analysis.EstimatedResolutionHours},
		Note:      analysis.Reasoning,
		CreatedAt: analysis.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("save complexity score: %w", err)
	}

	a.log.Info("ticket analyzed",
		"ticket_id", t.ID,
		"complexity", analysis.Complexity,
		"confidence", analysis.Confidence,
		"category", analysis.Category)
	return analysis, nil
}

func userID(t *ticket.Ticket) string {
	if t.AssignedTo == 0 {
		return ""
	}
	return strconv.FormatInt(t.AssignedTo, 10)
}

func validate(t *ticket.Ticket) error {
	fields := map[string]string{
		"title":       t.Title,
		"description": t.Description,
		"category":    t.Category,
		"priority":    t.Priority,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, name)
		}
	}
	return nil
}

func buildPrompt(t *ticket.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(t.Title))
	fmt.Fprintf(&b, "Category: %s\n", strings.TrimSpace(t.Category))
	fmt.Fprintf(&b, "Priority: %s\n", strings.TrimSpace(t.Priority))
	fmt.Fprintf(&b, "Description:\n%s\n", strings.TrimSpace(t.Description))
	return b.String()
}

// parseAnalysis decodes the model's JSON reply. Models sometimes wrap the
// object in a markdown fence, so fences are stripped first. Out-of-range
// values are clamped rather than rejected.
func parseAnalysis(text string) (*store.TicketAnalysis, error) {
	raw := stripFences(text)

	var parsed struct {
		Complexity               int      `json:"complexity"`
		Category                 string   `json:"category"`
		Priority                 string   `json:"priority"`
		Confidence               float64  `json:"confidence"`
		Tags                     []string `json:"tags"`
		EstimatedResolutionHours float64  `json:"estimated_resolution_hours"`
		Reasoning                string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable analysis reply: %w", err)
	}

	return &store.TicketAnalysis{
		Complexity:               clampInt(parsed.Complexity, 0, 100),
		Category:                 parsed.Category,
		Priority:                 parsed.Priority,
		Confidence:               clampFloat(parsed.Confidence, 0, 1),
		Tags:                     parsed.Tags,
		EstimatedResolutionHours: parsed.EstimatedResolutionHours,
		Reasoning:                parsed.Reasoning,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
