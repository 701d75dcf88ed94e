// Package config provides configuration types and loading for deskwise.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, AI, RateLimit, Escalation, Learning, FAQCache, Notify.
type Config struct {
	Paths       PathsConfig       `json:"paths"`
	AI          AIConfig          `json:"ai"`
	RateLimit   RateLimitConfig   `json:"rateLimit"`
	Escalation  EscalationConfig  `json:"escalation"`
	Learning    LearningConfig    `json:"learning"`
	FAQCache    FAQCacheConfig    `json:"faqCache"`
	Notify      NotifyConfig      `json:"notify"`
	TicketStore TicketStoreConfig `json:"ticketStore"`
	Serve       ServeConfig       `json:"serve"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ---------------------------------------------------------------------------
// AI – inference model behaviour and response gating
// ---------------------------------------------------------------------------

// AIConfig groups inference model and response generation settings.
type AIConfig struct {
	Model       string  `json:"model" envconfig:"MODEL"`
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string  `json:"apiBase,omitempty" envconfig:"API_BASE"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`

	// ConfidenceThreshold gates response generation; AutoApplyThreshold gates
	// attaching the generated response as a system comment. They share a
	// default but are two independent knobs.
	ConfidenceThreshold float64 `json:"confidenceThreshold" envconfig:"CONFIDENCE_THRESHOLD"`
	AutoApplyThreshold  float64 `json:"autoApplyThreshold" envconfig:"AUTO_APPLY_THRESHOLD"`

	MaxResponseLength int           `json:"maxResponseLength" envconfig:"MAX_RESPONSE_LENGTH"`
	ResponseTimeout   time.Duration `json:"responseTimeout" envconfig:"RESPONSE_TIMEOUT"`
}

// ---------------------------------------------------------------------------
// RateLimit – request windows and spend budgets for the inference service
// ---------------------------------------------------------------------------

// RateLimitConfig contains the window ceilings and cost budgets enforced by
// the governor. A zero MaxRequestsPerHour disables the hourly cap.
// Replacing this config does not retroactively alter past usage records.
type RateLimitConfig struct {
	Preset               string  `json:"preset,omitempty" envconfig:"PRESET"`
	MaxRequestsPerMinute int     `json:"maxRequestsPerMinute" envconfig:"MAX_REQUESTS_PER_MINUTE"`
	MaxRequestsPerHour   int     `json:"maxRequestsPerHour" envconfig:"MAX_REQUESTS_PER_HOUR"`
	MaxRequestsPerDay    int     `json:"maxRequestsPerDay" envconfig:"MAX_REQUESTS_PER_DAY"`
	MaxTokensPerRequest  int     `json:"maxTokensPerRequest" envconfig:"MAX_TOKENS_PER_REQUEST"`
	DailyLimitUSD        float64 `json:"dailyLimitUSD" envconfig:"DAILY_LIMIT_USD"`
	MonthlyLimitUSD      float64 `json:"monthlyLimitUSD" envconfig:"MONTHLY_LIMIT_USD"`
	IsFreeTierAccount    bool    `json:"isFreeTierAccount" envconfig:"IS_FREE_TIER_ACCOUNT"`
}

// ---------------------------------------------------------------------------
// Escalation – complexity-based routing
// ---------------------------------------------------------------------------

// EscalationConfig contains settings for complexity-based escalation.
type EscalationConfig struct {
	// ComplexityThreshold is a strict lower bound: a score equal to the
	// threshold does not escalate.
	ComplexityThreshold int   `json:"complexityThreshold" envconfig:"COMPLEXITY_THRESHOLD"`
	DefaultTeamID       int64 `json:"defaultTeamId,omitempty" envconfig:"DEFAULT_TEAM_ID"`
}

// ---------------------------------------------------------------------------
// Learning – resolved-ticket pattern extraction
// ---------------------------------------------------------------------------

// LearningConfig contains settings for the knowledge learning job.
type LearningConfig struct {
	Enabled                 bool    `json:"enabled" envconfig:"ENABLED"`
	Schedule                string  `json:"schedule" envconfig:"SCHEDULE"`
	BatchSize               int     `json:"batchSize" envconfig:"BATCH_SIZE"`
	MinResolutionScore      float64 `json:"minResolutionScore" envconfig:"MIN_RESOLUTION_SCORE"`
	ArticleApprovalRequired bool    `json:"articleApprovalRequired" envconfig:"ARTICLE_APPROVAL_REQUIRED"`
	MaxAttempts             int     `json:"maxAttempts" envconfig:"MAX_ATTEMPTS"`
	LockPath                string  `json:"lockPath" envconfig:"LOCK_PATH"`
}

// ---------------------------------------------------------------------------
// FAQCache – content-addressed answer cache
// ---------------------------------------------------------------------------

// Eviction policies for the FAQ cache.
const (
	EvictionNone       = "none"
	EvictionMaxEntries = "max-entries"
)

// FAQCacheConfig contains settings for the question-answer cache.
type FAQCacheConfig struct {
	Enabled         bool   `json:"enabled" envconfig:"ENABLED"`
	MinAnswerLength int    `json:"minAnswerLength" envconfig:"MIN_ANSWER_LENGTH"`
	Eviction        string `json:"eviction" envconfig:"EVICTION"` // EvictionNone or EvictionMaxEntries
	MaxEntries      int    `json:"maxEntries" envconfig:"MAX_ENTRIES"`
}

// ---------------------------------------------------------------------------
// Notify – event emission sinks
// ---------------------------------------------------------------------------

// NotifyConfig contains settings for pipeline event emission.
type NotifyConfig struct {
	Kafka KafkaSinkConfig `json:"kafka"`
	Slack SlackSinkConfig `json:"slack"`
}

// KafkaSinkConfig configures the Kafka event sink.
type KafkaSinkConfig struct {
	Enabled bool     `json:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers []string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string   `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// SlackSinkConfig configures the Slack event sink.
type SlackSinkConfig struct {
	Enabled bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	Token   string `json:"token" envconfig:"SLACK_TOKEN"`
	Channel string `json:"channel" envconfig:"SLACK_CHANNEL"`
}

// ---------------------------------------------------------------------------
// TicketStore – the external ticket CRUD service
// ---------------------------------------------------------------------------

// TicketStoreConfig points at the external ticket service the pipeline
// reads tickets from and posts comments to.
type TicketStoreConfig struct {
	BaseURL string `json:"baseUrl" envconfig:"BASE_URL"`
	Token   string `json:"token,omitempty" envconfig:"TOKEN"`
}

// ---------------------------------------------------------------------------
// Serve – the pipeline's own HTTP surface
// ---------------------------------------------------------------------------

// ServeConfig configures the serve command.
type ServeConfig struct {
	Listen          string `json:"listen" envconfig:"LISTEN"`
	MaxSideBranches int    `json:"maxSideBranches" envconfig:"MAX_SIDE_BRANCHES"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.deskwise",
		},
		AI: AIConfig{
			Model:               "anthropic.claude-3-5-sonnet-20241022-v2:0",
			MaxTokens:           4096,
			Temperature:         0.3,
			ConfidenceThreshold: 0.70,
			AutoApplyThreshold:  0.70,
			MaxResponseLength:   4000,
			ResponseTimeout:     30 * time.Second,
		},
		RateLimit:  PresetBalanced.Apply(RateLimitConfig{}),
		Escalation: EscalationConfig{ComplexityThreshold: 70},
		Learning: LearningConfig{
			Enabled:                 true,
			Schedule:                "0 3 * * *",
			BatchSize:               20,
			MinResolutionScore:      0.6,
			ArticleApprovalRequired: true,
			MaxAttempts:             3,
			LockPath:                "~/.deskwise/learning.lock",
		},
		FAQCache: FAQCacheConfig{
			Enabled:         true,
			MinAnswerLength: 50,
			Eviction:        EvictionNone,
			MaxEntries:      10000,
		},
		Notify: NotifyConfig{
			Kafka: KafkaSinkConfig{Topic: "deskwise.events"},
		},
		TicketStore: TicketStoreConfig{
			BaseURL: "http://localhost:8080",
		},
		Serve: ServeConfig{
			Listen:          ":8090",
			MaxSideBranches: 4,
		},
	}
}
