package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/deskwise/deskwise/internal/config"
)

// slackAPI is the slice of the Slack client the sink uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackSink posts a short human-readable line per event to one channel.
type SlackSink struct {
	api     slackAPI
	channel string
}

// NewSlackSink creates a sink using the configured bot token.
func NewSlackSink(cfg config.SlackSinkConfig) *SlackSink {
	return &SlackSink{api: slack.New(cfg.Token), channel: cfg.Channel}
}

func (s *SlackSink) Name() string { return "slack" }

// Send posts the event to the configured channel.
func (s *SlackSink) Send(ctx context.Context, e *Event) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(formatEvent(e), false))
	return err
}

func formatEvent(e *Event) string {
	switch e.Type {
	case EventResponseGenerated:
		return fmt.Sprintf(":robot_face: Auto-response posted on ticket #%d (confidence %v)", e.TicketID, e.Payload["confidence"])
	case EventTicketEscalated:
		return fmt.Sprintf(":rotating_light: Ticket #%d escalated to team %v (complexity %v)", e.TicketID, e.Payload["team_id"], e.Payload["complexity"])
	case EventArticlePendingReview:
		return fmt.Sprintf(":memo: %v learned article(s) awaiting approval", e.Payload["awaiting_approval"])
	case EventLearningPassFinished:
		return fmt.Sprintf(":books: Learning pass done: %v patterns, %v articles created, %v published",
			e.Payload["patterns_found"], e.Payload["articles_created"], e.Payload["articles_published"])
	default:
		return fmt.Sprintf("deskwise event %s (ticket #%d)", e.Type, e.TicketID)
	}
}
