package store

import "time"

// Learning queue item states. A completed item never regresses to pending.
const (
	LearningPending    = "pending"
	LearningProcessing = "processing"
	LearningCompleted  = "completed"
	LearningFailed     = "failed"
)

// Knowledge article sources.
const (
	ArticleSourceManual  = "manual"
	ArticleSourceLearned = "learned"
)

// TicketAnalysis is the immutable classification produced for a ticket.
type TicketAnalysis struct {
	ID                       int64     `json:"id"`
	TicketID                 int64     `json:"ticket_id"`
	Complexity               int       `json:"complexity"` // 0..100
	Category                 string    `json:"category"`
	Priority                 string    `json:"priority"`
	Confidence               float64   `json:"confidence"` // 0..1
	Tags                     []string  `json:"tags"`
	EstimatedResolutionHours float64   `json:"estimated_resolution_hours"`
	Reasoning                string    `json:"reasoning"`
	ModelID                  string    `json:"model_id"`
	CreatedAt                time.Time `json:"created_at"`
}

// ComplexityScore is one scoring record for a ticket. Records append with a
// timestamp; lookups return the most recent.
type ComplexityScore struct {
	ID        int64              `json:"id"`
	TicketID  int64              `json:"ticket_id"`
	Score     int                `json:"score"` // 0..100
	Factors   map[string]float64 `json:"factors"`
	Note      string             `json:"note"`
	CreatedAt time.Time          `json:"created_at"`
}

// AutoResponse is a generated response for a ticket. Applying it is a
// terminal transition; an applied response is never regenerated without a
// new ticket-update event.
type AutoResponse struct {
	ID                  int64     `json:"id"`
	TicketID            int64     `json:"ticket_id"`
	ResponseText        string    `json:"response_text"`
	ConfidenceScore     float64   `json:"confidence_score"`
	WasApplied          bool      `json:"was_applied"`
	WasHelpful          *bool     `json:"was_helpful,omitempty"`
	SuggestedArticleIDs []int64   `json:"suggested_article_ids,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// FAQEntry maps a normalized question hash to a previously generated answer.
// Append-only except for the hit counter.
type FAQEntry struct {
	ID                 int64     `json:"id"`
	QuestionHash       string    `json:"question_hash"`
	NormalizedQuestion string    `json:"normalized_question"`
	OriginalQuestion   string    `json:"original_question"`
	Answer             string    `json:"answer"`
	HitCount           int       `json:"hit_count"`
	CreatedAt          time.Time `json:"created_at"`
	LastHitAt          time.Time `json:"last_hit_at"`
}

// UsageRecord is one row of the append-only inference usage ledger.
type UsageRecord struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	SessionID    string    `json:"session_id"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	ModelID      string    `json:"model_id"`
	CostUSD      float64   `json:"cost_usd"`
	CreatedAt    time.Time `json:"created_at"`
}

// LearningItem is one resolved ticket queued for pattern extraction.
type LearningItem struct {
	ID            int64     `json:"id"`
	TicketID      int64     `json:"ticket_id"`
	ProcessStatus string    `json:"process_status"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// KnowledgeArticle is a reusable answer pattern, created manually or mined
// from resolved tickets.
type KnowledgeArticle struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	Category           string    `json:"category"`
	Tags               []string  `json:"tags"`
	EffectivenessScore float64   `json:"effectiveness_score"`
	FeedbackCount      int       `json:"feedback_count"`
	UsageCount         int       `json:"usage_count"`
	IsPublished        bool      `json:"is_published"`
	Source             string    `json:"source"`
	SourceTicketID     int64     `json:"source_ticket_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// EscalationRule routes high-complexity tickets to a team. Highest Priority
// wins among matching rules, ties broken by lowest rule id.
type EscalationRule struct {
	ID                  int64 `json:"id"`
	ComplexityThreshold int   `json:"complexity_threshold"`
	TeamID              int64 `json:"team_id"`
	Priority            int   `json:"priority"`
	Enabled             bool  `json:"enabled"`
}

// FeedbackEvent is one recorded rating, kept as an append-only audit trail
// alongside the recomputed aggregates.
type FeedbackEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"` // "autoResponse" or "knowledgeArticle"
	TargetID  int64     `json:"target_id"`
	Rating    int       `json:"rating"` // 1 or 5
	CreatedAt time.Time `json:"created_at"`
}

// Schema creates all pipeline tables.
const Schema = `
CREATE TABLE IF NOT EXISTS ticket_analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id INTEGER UNIQUE NOT NULL,
	complexity INTEGER NOT NULL DEFAULT 0,
	category TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT '[]',
	estimated_resolution_hours REAL NOT NULL DEFAULT 0,
	reasoning TEXT NOT NULL DEFAULT '',
	model_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS complexity_scores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id INTEGER NOT NULL,
	score INTEGER NOT NULL,
	factors TEXT NOT NULL DEFAULT '{}',
	note TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_complexity_ticket ON complexity_scores(ticket_id, created_at);

CREATE TABLE IF NOT EXISTS auto_responses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id INTEGER NOT NULL,
	response_text TEXT NOT NULL,
	confidence_score REAL NOT NULL DEFAULT 0,
	was_applied BOOLEAN NOT NULL DEFAULT 0,
	was_helpful BOOLEAN,
	suggested_article_ids TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_auto_responses_ticket ON auto_responses(ticket_id);

CREATE TABLE IF NOT EXISTS faq_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question_hash TEXT UNIQUE NOT NULL,
	normalized_question TEXT NOT NULL,
	original_question TEXT NOT NULL,
	answer TEXT NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_hit_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	model_id TEXT NOT NULL DEFAULT '',
	cost_usd REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_records(created_at);

CREATE TABLE IF NOT EXISTS learning_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id INTEGER UNIQUE NOT NULL,
	process_status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_learning_status ON learning_queue(process_status);

CREATE TABLE IF NOT EXISTS knowledge_articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	effectiveness_score REAL NOT NULL DEFAULT 0,
	feedback_count INTEGER NOT NULL DEFAULT 0,
	usage_count INTEGER NOT NULL DEFAULT 0,
	is_published BOOLEAN NOT NULL DEFAULT 0,
	source TEXT NOT NULL DEFAULT 'manual',
	source_ticket_id INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_articles_category ON knowledge_articles(category, is_published);

CREATE TABLE IF NOT EXISTS escalation_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	complexity_threshold INTEGER NOT NULL,
	team_id INTEGER NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	enabled BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS feedback_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	target_id INTEGER NOT NULL,
	rating INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_feedback_target ON feedback_events(kind, target_id);
`
