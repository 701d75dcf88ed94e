// Package governor admits or rejects prospective inference calls against
// sliding time-window ceilings and dollar budgets.
package governor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/provider"
	"github.com/deskwise/deskwise/internal/store"
)

var (
	// ErrRateLimitExceeded signals a window counter at or above its ceiling.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrCostLimitExceeded signals a token or dollar budget refusal.
	ErrCostLimitExceeded = errors.New("cost limit exceeded")
)

// Ledger is the append-only usage record store the governor computes its
// windows from.
type Ledger interface {
	CountRequestsAfter(t time.Time) (int, error)
	SpendSince(t time.Time) (float64, error)
	AddUsageRecord(u *store.UsageRecord) error
}

// Governor enforces request-rate windows and cost budgets for the shared
// inference service. Admission and recording are two phases: true token
// counts are only known after the call completes, so Admit reserves a slot
// and Record settles it against the ledger.
type Governor struct {
	cfg     config.RateLimitConfig
	ledger  Ledger
	pricing PricingTable

	now func() time.Time

	mu           sync.Mutex
	inflight     int
	inflightCost float64
}

// New creates a Governor over the given ledger.
func New(cfg config.RateLimitConfig, ledger Ledger, pricing PricingTable) *Governor {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Governor{
		cfg:     cfg,
		ledger:  ledger,
		pricing: pricing,
		now:     time.Now,
	}
}

// WithClock overrides the governor's time source. Tests use a fake clock to
// cross window boundaries deterministically.
func (g *Governor) WithClock(now func() time.Time) *Governor {
	g.now = now
	return g
}

// Reservation is an admitted-but-unsettled call slot.
type Reservation struct {
	g         *Governor
	SessionID string
	ModelID   string
	estCost   float64
	settled   bool
}

// Admit decides whether one more inference call may be made right now.
// Window counters are computed from wall-clock timestamps against the
// ledger on every check; there is no timer state to drift.
func (g *Governor) Admit(modelID string, estimatedTokens int) (*Reservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()

	type window struct {
		name    string
		since   time.Time
		ceiling int
	}
	windows := []window{
		{"minute", now.Add(-time.Minute), g.cfg.MaxRequestsPerMinute},
		{"hour", now.Add(-time.Hour), g.cfg.MaxRequestsPerHour},
		{"day", now.Add(-24 * time.Hour), g.cfg.MaxRequestsPerDay},
	}
	for _, w := range windows {
		if w.ceiling <= 0 {
			continue // 0 disables the cap
		}
		n, err := g.ledger.CountRequestsAfter(w.since)
		if err != nil {
			return nil, fmt.Errorf("count %s window: %w", w.name, err)
		}
		if n+g.inflight >= w.ceiling {
			return nil, fmt.Errorf("%w: %s window at %d/%d", ErrRateLimitExceeded, w.name, n+g.inflight, w.ceiling)
		}
	}

	if g.cfg.MaxTokensPerRequest > 0 && estimatedTokens > g.cfg.MaxTokensPerRequest {
		return nil, fmt.Errorf("%w: %d tokens exceeds per-request cap %d",
			ErrCostLimitExceeded, estimatedTokens, g.cfg.MaxTokensPerRequest)
	}

	var estCost float64
	if !g.cfg.IsFreeTierAccount {
		// Conservative projection: assume a completion as large as the prompt.
		// Unknown model ids fail closed rather than being assumed free.
		var err error
		estCost, err = g.pricing.Cost(modelID, estimatedTokens, estimatedTokens)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCostLimitExceeded, err)
		}

		if g.cfg.DailyLimitUSD > 0 {
			spent, err := g.ledger.SpendSince(startOfDay(now))
			if err != nil {
				return nil, fmt.Errorf("daily spend: %w", err)
			}
			if spent+g.inflightCost+estCost > g.cfg.DailyLimitUSD {
				return nil, fmt.Errorf("%w: projected daily spend $%.4f exceeds $%.2f",
					ErrCostLimitExceeded, spent+g.inflightCost+estCost, g.cfg.DailyLimitUSD)
			}
		}
		if g.cfg.MonthlyLimitUSD > 0 {
			spent, err := g.ledger.SpendSince(startOfMonth(now))
			if err != nil {
				return nil, fmt.Errorf("monthly spend: %w", err)
			}
			if spent+g.inflightCost+estCost > g.cfg.MonthlyLimitUSD {
				return nil, fmt.Errorf("%w: projected monthly spend $%.4f exceeds $%.2f",
					ErrCostLimitExceeded, spent+g.inflightCost+estCost, g.cfg.MonthlyLimitUSD)
			}
		}
	}

	g.inflight++
	g.inflightCost += estCost
	return &Reservation{
		g:         g,
		SessionID: uuid.NewString(),
		ModelID:   modelID,
		estCost:   estCost,
	}, nil
}

// Record settles a reservation with the actual usage from the completed
// call and appends it to the ledger so later Admit calls see the spend.
func (g *Governor) Record(res *Reservation, usage provider.Usage, userID string) error {
	if res == nil || res.settled {
		return nil
	}
	g.release(res)

	cost := 0.0
	if !g.cfg.IsFreeTierAccount {
		// The model was priced at admission, so this cannot miss.
		cost, _ = g.pricing.Cost(res.ModelID, usage.InputTokens, usage.OutputTokens)
	}
	return g.ledger.AddUsageRecord(&store.UsageRecord{
		UserID:       userID,
		SessionID:    res.SessionID,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
		ModelID:      res.ModelID,
		CostUSD:      cost,
		CreatedAt:    g.now().UTC(),
	})
}

// Cancel releases a reservation without writing to the ledger, for calls
// that failed before producing usage.
func (res *Reservation) Cancel() {
	if res == nil || res.settled {
		return
	}
	res.g.release(res)
}

func (g *Governor) release(res *Reservation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res.settled = true
	g.inflight--
	g.inflightCost -= res.estCost
}

// Snapshot reports current window usage and budget headroom.
type Snapshot struct {
	MinuteUsed int
	HourUsed   int
	DayUsed    int
	DaySpend   float64
	MonthSpend float64
	Config     config.RateLimitConfig
}

// Usage returns a point-in-time view for operator display.
func (g *Governor) Usage() (*Snapshot, error) {
	now := g.now().UTC()
	snap := &Snapshot{Config: g.cfg}

	var err error
	if snap.MinuteUsed, err = g.ledger.CountRequestsAfter(now.Add(-time.Minute)); err != nil {
		return nil, err
	}
	if snap.HourUsed, err = g.ledger.CountRequestsAfter(now.Add(-time.Hour)); err != nil {
		return nil, err
	}
	if snap.DayUsed, err = g.ledger.CountRequestsAfter(now.Add(-24 * time.Hour)); err != nil {
		return nil, err
	}
	if snap.DaySpend, err = g.ledger.SpendSince(startOfDay(now)); err != nil {
		return nil, err
	}
	if snap.MonthSpend, err = g.ledger.SpendSince(startOfMonth(now)); err != nil {
		return nil, err
	}
	return snap, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
