// Package learning mines resolved tickets into reusable knowledge articles.
// The job drains the learning queue in bounded batches; each item is
// isolated, so one ticket's failure never aborts the rest of the pass.
package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/governor"
	"github.com/deskwise/deskwise/internal/provider"
	"github.com/deskwise/deskwise/internal/schedule"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/ticket"
)

// ErrAlreadyRunning signals that a pass is in progress. Item status
// transitions are not safe for concurrent writers, so overlapping passes
// are refused rather than queued.
var ErrAlreadyRunning = errors.New("learning pass already running")

// Store is the persistence surface the job needs.
type Store interface {
	SelectPendingLearning(limit int) ([]store.LearningItem, error)
	MarkLearningProcessing(id int64) (bool, error)
	CompleteLearningItem(id int64) error
	FailLearningItem(id int64, attempts int, lastError string, retryable bool) error
	InsertArticle(a *store.KnowledgeArticle) error
}

// PassResult summarizes one learning pass.
type PassResult struct {
	PatternsFound     int `json:"patterns_found"`
	ArticlesCreated   int `json:"articles_created"`
	ArticlesPublished int `json:"articles_published"`
}

// Job is the periodic knowledge-learning batch consumer.
type Job struct {
	cfg      config.LearningConfig
	aiCfg    config.AIConfig
	tickets  ticket.Store
	provider provider.Provider
	gov      *governor.Governor
	store    Store
	log      *slog.Logger

	running atomic.Bool
	lock    *schedule.FileLock
}

// New creates a Job. cfg.LockPath guards against a second process running
// a pass over the same database; empty disables the file guard.
func New(cfg config.LearningConfig, aiCfg config.AIConfig, tickets ticket.Store, p provider.Provider, gov *governor.Governor, st Store, log *slog.Logger) *Job {
	if log == nil {
		log = slog.Default()
	}
	j := &Job{cfg: cfg, aiCfg: aiCfg, tickets: tickets, provider: p, gov: gov, store: st, log: log}
	if cfg.LockPath != "" {
		j.lock = schedule.NewFileLock(cfg.LockPath)
	}
	return j
}

// RunOnce executes a single pass: select up to BatchSize pending items and
// process each. Returns ErrAlreadyRunning if a pass is in flight in this
// process or another one holds the file lock.
func (j *Job) RunOnce(ctx context.Context) (*PassResult, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer j.running.Store(false)

	if j.lock != nil {
		acquired, err := j.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("learning lock: %w", err)
		}
		if !acquired {
			return nil, ErrAlreadyRunning
		}
		defer j.lock.Unlock()
	}

	items, err := j.store.SelectPendingLearning(j.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}

	result := &PassResult{}
	for _, item := range items {
		claimed, err := j.store.MarkLearningProcessing(item.ID)
		if err != nil {
			j.log.Error("claim failed", "item_id", item.ID, "error", err)
			continue
		}
		if !claimed {
			continue // no longer pending
		}
		j.processItem(ctx, &item, result)
	}

	j.log.Info("learning pass finished",
		"items", len(items),
		"patterns", result.PatternsFound,
		"created", result.ArticlesCreated,
		"published", result.ArticlesPublished)
	return result, nil
}

// processItem handles one queue item end to end. Errors mark the item
// failed with bounded retries and never propagate to the batch.
func (j *Job) processItem(ctx context.Context, item *store.LearningItem, result *PassResult) {
	article, err := j.extract(ctx, item.TicketID, result)
	if err != nil {
		attempts := item.Attempts + 1
		retryable := attempts < j.cfg.MaxAttempts
		if ferr := j.store.FailLearningItem(item.ID, attempts, err.Error(), retryable); ferr != nil {
			j.log.Error("fail transition failed", "item_id", item.ID, "error", ferr)
		}
		j.log.Warn("learning item failed",
			"item_id", item.ID,
			"ticket_id", item.TicketID,
			"attempts", attempts,
			"retryable", retryable,
			"error", err)
		return
	}

	if err := j.store.CompleteLearningItem(item.ID); err != nil {
		j.log.Error("complete transition failed", "item_id", item.ID, "error", err)
		return
	}
	if article != nil {
		result.ArticlesCreated++
		if article.IsPublished {
			result.ArticlesPublished++
		}
	}
}

// extract fetches the resolved ticket, scores its resolution quality, and
// mines an article when the score clears the configured floor. A nil
// article with nil error means the ticket was completed without extraction.
func (j *Job) extract(ctx context.Context, ticketID int64, result *PassResult) (*store.KnowledgeArticle, error) {
	t, err := j.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("fetch ticket: %w", err)
	}
	if t.Status != ticket.StatusResolved && t.Status != ticket.StatusClosed {
		return nil, fmt.Errorf("ticket %d is %s, not resolved", ticketID, t.Status)
	}

	comments, err := j.tickets.ListComments(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}

	score := ResolutionScore(t, comments)
	if score < j.cfg.MinResolutionScore {
		j.log.Info("resolution below learning floor",
			"ticket_id", ticketID,
			"score", score,
			"floor", j.cfg.MinResolutionScore)
		return nil, nil
	}
	result.PatternsFound++

	draft, err := j.mine(ctx, t, comments)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	article := &store.KnowledgeArticle{
		Title:          draft.Title,
		Content:        draft.Content,
		Category:       draft.Category,
		Tags:           draft.Tags,
		IsPublished:    !j.cfg.ArticleApprovalRequired,
		Source:         store.ArticleSourceLearned,
		SourceTicketID: ticketID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if article.Category == "" {
		article.Category = t.Category
	}
	if err := j.store.InsertArticle(article); err != nil {
		return nil, fmt.Errorf("save article: %w", err)
	}

	j.log.Info("article mined",
		"ticket_id", ticketID,
		"article_id", article.ID,
		"published", article.IsPublished)
	return article, nil
}

const miningSystemPrompt = `You are a knowledge-base editor. From the resolved ticket below, extract a reusable help article that would let an agent resolve similar tickets without rediscovery. Respond with a single JSON object: {"title": "<string>", "content": "<markdown body>", "category": "<string>", "tags": ["<string>"]}`

type minedArticle struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (j *Job) mine(ctx context.Context, t *ticket.Ticket, comments []ticket.Comment) (*minedArticle, error) {
	prompt := buildMiningPrompt(t, comments)

	model := j.aiCfg.Model
	if model == "" {
		model = j.provider.DefaultModel()
	}
	res, err := j.gov.Admit(model, provider.EstimateTokens(miningSystemPrompt+prompt))
	if err != nil {
		return nil, err
	}
	out, err := j.provider.Invoke(ctx, &provider.Request{
		System:      miningSystemPrompt,
		Prompt:      prompt,
		Model:       model,
		MaxTokens:   j.aiCfg.MaxTokens,
		Temperature: j.aiCfg.Temperature,
	})
	if err != nil {
		res.Cancel()
		return nil, err
	}
	if err := j.gov.Record(res, out.Usage, ""); err != nil {
		j.log.Warn("usage record failed", "error", err)
	}

	raw := strings.TrimSpace(out.Text)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}
	var draft minedArticle
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, fmt.Errorf("unparseable mining reply: %w", err)
	}
	if strings.TrimSpace(draft.Title) == "" || strings.TrimSpace(draft.Content) == "" {
		return nil, errors.New("mining reply missing title or content")
	}
	return &draft, nil
}

func buildMiningPrompt(t *ticket.Ticket, comments []ticket.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", t.Title)
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "Problem:\n%s\n", t.Description)
	if t.Resolution != "" {
		fmt.Fprintf(&b, "Resolution:\n%s\n", t.Resolution)
	}
	if len(comments) > 0 {
		b.WriteString("Thread:\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "- %s\n", c.Content)
		}
	}
	return b.String()
}

// ResolutionScore estimates how well a resolved ticket documents its own
// fix, in [0,1]. The resolution text carries most of the weight; a comment
// thread and a non-trivial description add the rest.
func ResolutionScore(t *ticket.Ticket, comments []ticket.Comment) float64 {
	score := 0.0

	switch n := len(strings.TrimSpace(t.Resolution)); {
	case n >= 200:
		score += 0.6
	case n >= 50:
		score += 0.4
	case n > 0:
		score += 0.2
	}

	human := 0
	for _, c := range comments {
		if !c.IsSystem {
			human++
		}
	}
	switch {
	case human >= 3:
		score += 0.25
	case human >= 1:
		score += 0.15
	}

	if len(strings.TrimSpace(t.Description)) >= 50 {
		score += 0.15
	}

	if score > 1 {
		score = 1
	}
	return score
}
