// Package feedback records human ratings on generated responses and
// knowledge articles. Ratings are two-pole (1 not helpful, 5 helpful) and
// feed the learning loop as a signal; they never alter what was applied.
package feedback

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deskwise/deskwise/internal/store"
)

// Feedback kinds.
const (
	KindAutoResponse     = "autoResponse"
	KindKnowledgeArticle = "knowledgeArticle"
)

// Rating poles. No continuum in between.
const (
	RatingNotHelpful = 1
	RatingHelpful    = 5
)

// ErrInvalidFeedback marks an unknown kind or out-of-band rating.
var ErrInvalidFeedback = errors.New("invalid feedback")

// Store is the persistence surface the tracker needs.
type Store interface {
	GetAutoResponseByID(id int64) (*store.AutoResponse, error)
	SetResponseHelpful(id int64, helpful bool) error
	GetArticle(id int64) (*store.KnowledgeArticle, error)
	UpdateArticleFeedback(id int64, score float64, feedbackCount int) error
	AddFeedbackEvent(e *store.FeedbackEvent) error
}

// Tracker applies feedback to aggregates and keeps the event audit trail.
type Tracker struct {
	store Store
	log   *slog.Logger
}

// New creates a Tracker.
func New(st Store, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: st, log: log}
}

// Record applies one rating to the target identified by kind and id.
// Article scores update as an incremental mean over all feedback received,
// so the result is order-dependent by construction.
func (t *Tracker) Record(kind string, id int64, rating int) error {
	if rating != RatingNotHelpful && rating != RatingHelpful {
		return fmt.Errorf("%w: rating %d (want %d or %d)", ErrInvalidFeedback, rating, RatingNotHelpful, RatingHelpful)
	}

	switch kind {
	case KindAutoResponse:
		if err := t.recordResponse(id, rating); err != nil {
			return err
		}
	case KindKnowledgeArticle:
		if err := t.recordArticle(id, rating); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidFeedback, kind)
	}

	if err := t.store.AddFeedbackEvent(&store.FeedbackEvent{
		Kind:      kind,
		TargetID:  id,
		Rating:    rating,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.log.Warn("feedback event write failed", "kind", kind, "target_id", id, "error", err)
	}
	t.log.Info("feedback recorded", "kind", kind, "target_id", id, "rating", rating)
	return nil
}

func (t *Tracker) recordResponse(id int64, rating int) error {
	if _, err := t.store.GetAutoResponseByID(id); err != nil {
		return err
	}
	return t.store.SetResponseHelpful(id, rating == RatingHelpful)
}

func (t *Tracker) recordArticle(id int64, rating int) error {
	a, err := t.store.GetArticle(id)
	if err != nil {
		return err
	}
	n := a.FeedbackCount + 1
	score := a.EffectivenessScore + (float64(rating)-a.EffectivenessScore)/float64(n)
	return t.store.UpdateArticleFeedback(id, score, n)
}
