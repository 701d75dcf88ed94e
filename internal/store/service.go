// Package store persists all pipeline-owned data in sqlite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Service wraps the sqlite database holding pipeline state.
type Service struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for existing dbs (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE knowledge_articles ADD COLUMN feedback_count INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE learning_queue ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`)

	return &Service{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Service) DB() *sql.DB { return s.db }

func (s *Service) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Ticket analyses
// ---------------------------------------------------------------------------

// SaveAnalysis persists the analysis for a ticket. Analyses are immutable;
// re-analyzing after a ticket-update event replaces the previous record.
func (s *Service) SaveAnalysis(a *TicketAnalysis) error {
	tags, _ := json.Marshal(a.Tags)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO ticket_analyses (ticket_id, complexity, category, priority, confidence, tags, estimated_resolution_hours, reasoning, model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			complexity=excluded.complexity, category=excluded.category,
			priority=excluded.priority, confidence=excluded.confidence,
			tags=excluded.tags, estimated_resolution_hours=excluded.estimated_resolution_hours,
			reasoning=excluded.reasoning, model_id=excluded.model_id, created_at=excluded.created_at`,
		a.TicketID, a.Complexity, a.Category, a.Priority, a.Confidence, string(tags),
		a.EstimatedResolutionHours, a.Reasoning, a.ModelID, a.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// GetAnalysis returns the analysis for a ticket, or ErrNotFound.
func (s *Service) GetAnalysis(ticketID int64) (*TicketAnalysis, error) {
	var a TicketAnalysis
	var tags string
	err := s.db.QueryRow(`
		SELECT id, ticket_id, complexity, category, priority, confidence, tags, estimated_resolution_hours, reasoning, model_id, created_at
		FROM ticket_analyses WHERE ticket_id = ?`, ticketID).
		Scan(&a.ID, &a.TicketID, &a.Complexity, &a.Category, &a.Priority, &a.Confidence,
			&tags, &a.EstimatedResolutionHours, &a.Reasoning, &a.ModelID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tags), &a.Tags)
	return &a, nil
}

// ---------------------------------------------------------------------------
// Complexity scores
// ---------------------------------------------------------------------------

// AddComplexityScore appends a scoring record for a ticket.
func (s *Service) AddComplexityScore(cs *ComplexityScore) error {
	factors, _ := json.Marshal(cs.Factors)
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO complexity_scores (ticket_id, score, factors, note, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		cs.TicketID, cs.Score, string(factors), cs.Note, cs.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		cs.ID = id
	}
	return nil
}

// LatestComplexityScore returns the most recent score for a ticket.
func (s *Service) LatestComplexityScore(ticketID int64) (*ComplexityScore, error) {
	var cs ComplexityScore
	var factors string
	err := s.db.QueryRow(`
		SELECT id, ticket_id, score, factors, note, created_at
		FROM complexity_scores WHERE ticket_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, ticketID).
		Scan(&cs.ID, &cs.TicketID, &cs.Score, &factors, &cs.Note, &cs.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(factors), &cs.Factors)
	return &cs, nil
}

// ---------------------------------------------------------------------------
// Auto responses
// ---------------------------------------------------------------------------

// InsertAutoResponse stores a newly generated response. A ticket keeps at
// most one unapplied draft: any earlier unapplied row for the same ticket is
// replaced. Applied responses are never touched.
func (s *Service) InsertAutoResponse(r *AutoResponse) error {
	ids, _ := json.Marshal(r.SuggestedArticleIDs)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM auto_responses WHERE ticket_id = ? AND was_applied = 0`, r.TicketID); err != nil {
		return err
	}
	res, err := tx.Exec(`
		INSERT INTO auto_responses (ticket_id, response_text, confidence_score, was_applied, was_helpful, suggested_article_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.TicketID, r.ResponseText, r.ConfidenceScore, r.WasApplied, r.WasHelpful, string(ids), r.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return tx.Commit()
}

// GetAutoResponse returns the latest response for a ticket.
func (s *Service) GetAutoResponse(ticketID int64) (*AutoResponse, error) {
	row := s.db.QueryRow(`
		SELECT id, ticket_id, response_text, confidence_score, was_applied, was_helpful, suggested_article_ids, created_at
		FROM auto_responses WHERE ticket_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, ticketID)
	return scanAutoResponse(row)
}

// GetAutoResponseByID returns a response by primary key.
func (s *Service) GetAutoResponseByID(id int64) (*AutoResponse, error) {
	row := s.db.QueryRow(`
		SELECT id, ticket_id, response_text, confidence_score, was_applied, was_helpful, suggested_article_ids, created_at
		FROM auto_responses WHERE id = ?`, id)
	return scanAutoResponse(row)
}

func scanAutoResponse(row *sql.Row) (*AutoResponse, error) {
	var r AutoResponse
	var ids string
	var helpful sql.NullBool
	err := row.Scan(&r.ID, &r.TicketID, &r.ResponseText, &r.ConfidenceScore,
		&r.WasApplied, &helpful, &ids, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if helpful.Valid {
		v := helpful.Bool
		r.WasHelpful = &v
	}
	_ = json.Unmarshal([]byte(ids), &r.SuggestedArticleIDs)
	return &r, nil
}

// MarkResponseApplied flips was_applied to true. The transition is terminal:
// marking an already-applied response is a no-op.
func (s *Service) MarkResponseApplied(id int64) error {
	_, err := s.db.Exec(`UPDATE auto_responses SET was_applied = 1 WHERE id = ? AND was_applied = 0`, id)
	return err
}

// SetResponseHelpful records human feedback on a response.
func (s *Service) SetResponseHelpful(id int64, helpful bool) error {
	res, err := s.db.Exec(`UPDATE auto_responses SET was_helpful = ? WHERE id = ?`, helpful, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasAppliedResponse reports whether any applied response exists for the ticket.
func (s *Service) HasAppliedResponse(ticketID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM auto_responses WHERE ticket_id = ? AND was_applied = 1`, ticketID).Scan(&n)
	return n > 0, err
}

// ---------------------------------------------------------------------------
// FAQ cache
// ---------------------------------------------------------------------------

// LookupFAQ returns the entry for a question hash and atomically increments
// its hit counter. Returns ErrNotFound on a miss.
func (s *Service) LookupFAQ(hash string) (*FAQEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE faq_cache SET hit_count = hit_count + 1, last_hit_at = ? WHERE question_hash = ?`,
		time.Now().UTC(), hash)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	var e FAQEntry
	err = tx.QueryRow(`
		SELECT id, question_hash, normalized_question, original_question, answer, hit_count, created_at, last_hit_at
		FROM faq_cache WHERE question_hash = ?`, hash).
		Scan(&e.ID, &e.QuestionHash, &e.NormalizedQuestion, &e.OriginalQuestion,
			&e.Answer, &e.HitCount, &e.CreatedAt, &e.LastHitAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertFAQ stores a new cache entry. Duplicate hashes are ignored.
func (s *Service) InsertFAQ(e *FAQEntry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.LastHitAt.IsZero() {
		e.LastHitAt = now
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO faq_cache (question_hash, normalized_question, original_question, answer, hit_count, created_at, last_hit_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.QuestionHash, e.NormalizedQuestion, e.OriginalQuestion, e.Answer, e.HitCount, e.CreatedAt, e.LastHitAt)
	return err
}

// FAQCount returns the number of cached entries.
func (s *Service) FAQCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM faq_cache`).Scan(&n)
	return n, err
}

// EvictFAQOverCap deletes the least recently hit entries beyond max.
// Returns the number of rows removed.
func (s *Service) EvictFAQOverCap(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}
	res, err := s.db.Exec(`
		DELETE FROM faq_cache WHERE id IN (
			SELECT id FROM faq_cache ORDER BY last_hit_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, max)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ---------------------------------------------------------------------------
// Usage ledger
// ---------------------------------------------------------------------------

// AddUsageRecord appends one row to the usage ledger. Records are never
// mutated afterwards.
func (s *Service) AddUsageRecord(u *UsageRecord) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO usage_records (user_id, session_id, input_tokens, output_tokens, total_tokens, model_id, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.SessionID, u.InputTokens, u.OutputTokens, u.TotalTokens, u.ModelID, u.CostUSD, u.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		u.ID = id
	}
	return nil
}

// CountRequestsAfter returns the number of ledger rows strictly after t.
func (s *Service) CountRequestsAfter(t time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM usage_records WHERE created_at > ?`, t).Scan(&n)
	return n, err
}

// SpendSince returns the summed cost of ledger rows at or after t.
func (s *Service) SpendSince(t time.Time) (float64, error) {
	var c sql.NullFloat64
	err := s.db.QueryRow(`SELECT SUM(cost_usd) FROM usage_records WHERE created_at >= ?`, t).Scan(&c)
	if err != nil {
		return 0, err
	}
	return c.Float64, nil
}

// UsageSummary aggregates the ledger at or after t.
func (s *Service) UsageSummary(t time.Time) (requests, tokens int, cost float64, err error) {
	var tok, cst sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT COUNT(1), SUM(total_tokens), SUM(cost_usd) FROM usage_records WHERE created_at >= ?`, t).
		Scan(&requests, &tok, &cst)
	return requests, int(tok.Float64), cst.Float64, err
}

// ---------------------------------------------------------------------------
// Learning queue
// ---------------------------------------------------------------------------

// EnqueueLearning adds a resolved ticket to the learning queue. Enqueueing
// the same ticket twice is a no-op; a completed item never regresses.
// Returns true if a new item was created.
func (s *Service) EnqueueLearning(ticketID int64) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO learning_queue (ticket_id, process_status, attempts, created_at, updated_at)
		VALUES (?, 'pending', 0, ?, ?)`, ticketID, now, now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SelectPendingLearning returns up to limit pending items, oldest first.
func (s *Service) SelectPendingLearning(limit int) ([]LearningItem, error) {
	rows, err := s.db.Query(`
		SELECT id, ticket_id, process_status, attempts, last_error, created_at, updated_at
		FROM learning_queue WHERE process_status = 'pending'
		ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LearningItem
	for rows.Next() {
		var it LearningItem
		if err := rows.Scan(&it.ID, &it.TicketID, &it.ProcessStatus, &it.Attempts, &it.LastError, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkLearningProcessing transitions a pending item to processing.
// Returns false if the item was not pending (already claimed or terminal).
func (s *Service) MarkLearningProcessing(id int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE learning_queue SET process_status = 'processing', updated_at = ?
		WHERE id = ? AND process_status = 'pending'`, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CompleteLearningItem marks an item completed. Completed items are never
// reprocessed.
func (s *Service) CompleteLearningItem(id int64) error {
	_, err := s.db.Exec(`
		UPDATE learning_queue SET process_status = 'completed', updated_at = ?
		WHERE id = ? AND process_status = 'processing'`, time.Now().UTC(), id)
	return err
}

// FailLearningItem records an extraction failure. When retryable the item
// goes back to pending for the next pass; otherwise it is permanently failed
// and surfaced for manual inspection.
func (s *Service) FailLearningItem(id int64, attempts int, lastError string, retryable bool) error {
	status := LearningFailed
	if retryable {
		status = LearningPending
	}
	_, err := s.db.Exec(`
		UPDATE learning_queue SET process_status = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ?`, status, attempts, lastError, time.Now().UTC(), id)
	return err
}

// GetLearningItem returns a queue item by ticket id.
func (s *Service) GetLearningItem(ticketID int64) (*LearningItem, error) {
	var it LearningItem
	err := s.db.QueryRow(`
		SELECT id, ticket_id, process_status, attempts, last_error, created_at, updated_at
		FROM learning_queue WHERE ticket_id = ?`, ticketID).
		Scan(&it.ID, &it.TicketID, &it.ProcessStatus, &it.Attempts, &it.LastError, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// LearningCounts returns item counts per status.
func (s *Service) LearningCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT process_status, COUNT(1) FROM learning_queue GROUP BY process_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ---------------------------------------------------------------------------
// Knowledge articles
// ---------------------------------------------------------------------------

// InsertArticle stores a new knowledge article.
func (s *Service) InsertArticle(a *KnowledgeArticle) error {
	tags, _ := json.Marshal(a.Tags)
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	res, err := s.db.Exec(`
		INSERT INTO knowledge_articles (title, content, category, tags, effectiveness_score, feedback_count, usage_count, is_published, source, source_ticket_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Content, a.Category, string(tags), a.EffectivenessScore, a.FeedbackCount,
		a.UsageCount, a.IsPublished, a.Source, a.SourceTicketID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// GetArticle returns an article by id.
func (s *Service) GetArticle(id int64) (*KnowledgeArticle, error) {
	var a KnowledgeArticle
	var tags string
	err := s.db.QueryRow(`
		SELECT id, title, content, category, tags, effectiveness_score, feedback_count, usage_count, is_published, source, source_ticket_id, created_at, updated_at
		FROM knowledge_articles WHERE id = ?`, id).
		Scan(&a.ID, &a.Title, &a.Content, &a.Category, &tags, &a.EffectivenessScore,
			&a.FeedbackCount, &a.UsageCount, &a.IsPublished, &a.Source, &a.SourceTicketID,
			&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tags), &a.Tags)
	return &a, nil
}

// PublishArticle flips is_published to true.
func (s *Service) PublishArticle(id int64) error {
	res, err := s.db.Exec(`UPDATE knowledge_articles SET is_published = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchArticles returns published articles in a category, best rated first.
func (s *Service) SearchArticles(category string, limit int) ([]KnowledgeArticle, error) {
	rows, err := s.db.Query(`
		SELECT id, title, content, category, tags, effectiveness_score, feedback_count, usage_count, is_published, source, source_ticket_id, created_at, updated_at
		FROM knowledge_articles
		WHERE is_published = 1 AND (? = '' OR category = ?)
		ORDER BY effectiveness_score DESC, usage_count DESC LIMIT ?`, category, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KnowledgeArticle
	for rows.Next() {
		var a KnowledgeArticle
		var tags string
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &tags, &a.EffectivenessScore,
			&a.FeedbackCount, &a.UsageCount, &a.IsPublished, &a.Source, &a.SourceTicketID,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &a.Tags)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListPendingApproval returns learned articles awaiting publication.
func (s *Service) ListPendingApproval() ([]KnowledgeArticle, error) {
	rows, err := s.db.Query(`
		SELECT id, title, content, category, tags, effectiveness_score, feedback_count, usage_count, is_published, source, source_ticket_id, created_at, updated_at
		FROM knowledge_articles WHERE is_published = 0 AND source = 'learned'
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KnowledgeArticle
	for rows.Next() {
		var a KnowledgeArticle
		var tags string
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &tags, &a.EffectivenessScore,
			&a.FeedbackCount, &a.UsageCount, &a.IsPublished, &a.Source, &a.SourceTicketID,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &a.Tags)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateArticleFeedback stores the recomputed effectiveness aggregate.
func (s *Service) UpdateArticleFeedback(id int64, score float64, feedbackCount int) error {
	res, err := s.db.Exec(`
		UPDATE knowledge_articles SET effectiveness_score = ?, feedback_count = ?, updated_at = ?
		WHERE id = ?`, score, feedbackCount, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementArticleUsage bumps the usage counter.
func (s *Service) IncrementArticleUsage(id int64) error {
	_, err := s.db.Exec(`UPDATE knowledge_articles SET usage_count = usage_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}

// ---------------------------------------------------------------------------
// Escalation rules
// ---------------------------------------------------------------------------

// UpsertEscalationRule inserts or updates a rule.
func (s *Service) UpsertEscalationRule(r *EscalationRule) error {
	if r.ID == 0 {
		res, err := s.db.Exec(`
			INSERT INTO escalation_rules (complexity_threshold, team_id, priority, enabled)
			VALUES (?, ?, ?, ?)`, r.ComplexityThreshold, r.TeamID, r.Priority, r.Enabled)
		if err != nil {
			return err
		}
		if id, err := res.LastInsertId(); err == nil {
			r.ID = id
		}
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO escalation_rules (id, complexity_threshold, team_id, priority, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			complexity_threshold=excluded.complexity_threshold, team_id=excluded.team_id,
			priority=excluded.priority, enabled=excluded.enabled`,
		r.ID, r.ComplexityThreshold, r.TeamID, r.Priority, r.Enabled)
	return err
}

// ListEscalationRules returns all rules.
func (s *Service) ListEscalationRules() ([]EscalationRule, error) {
	rows, err := s.db.Query(`SELECT id, complexity_threshold, team_id, priority, enabled FROM escalation_rules ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EscalationRule
	for rows.Next() {
		var r EscalationRule
		if err := rows.Scan(&r.ID, &r.ComplexityThreshold, &r.TeamID, &r.Priority, &r.Enabled); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Feedback events
// ---------------------------------------------------------------------------

// AddFeedbackEvent appends one rating to the audit trail.
func (s *Service) AddFeedbackEvent(e *FeedbackEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO feedback_events (kind, target_id, rating, created_at)
		VALUES (?, ?, ?, ?)`, e.Kind, e.TargetID, e.Rating, e.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// FeedbackCount returns the number of ratings recorded for a target.
func (s *Service) FeedbackCount(kind string, targetID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM feedback_events WHERE kind = ? AND target_id = ?`, kind, targetID).Scan(&n)
	return n, err
}
