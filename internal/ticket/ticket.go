// Package ticket defines the boundary to the external ticket store.
// The pipeline reads ticket text and attaches generated responses through
// this interface; ticket CRUD itself lives outside this module.
package ticket

import (
	"context"
	"time"
)

// Status values used by the pipeline. The external store may know more.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusClosed   = "closed"
)

// Ticket is the subset of ticket fields the pipeline consumes.
type Ticket struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Resolution  string    `json:"resolution,omitempty"`
	AssignedTo  int64     `json:"assigned_to,omitempty"`
	TeamID      int64     `json:"team_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
}

// Comment is a single entry in a ticket's comment thread.
type Comment struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  int64     `json:"author_id,omitempty"`
	Content   string    `json:"content"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
}

// Update carries the ticket fields the pipeline is allowed to change.
// Nil fields are left untouched.
type Update struct {
	TeamID     *int64
	AssignedTo *int64
	Priority   *string
}

// Store is the external ticket store. Implementations live in the routing
// layer; this module only consumes them.
type Store interface {
	GetTicket(ctx context.Context, id int64) (*Ticket, error)
	UpdateTicket(ctx context.Context, id int64, update Update) error
	CreateComment(ctx context.Context, ticketID int64, content string, isSystem bool) (*Comment, error)
	ListComments(ctx context.Context, ticketID int64) ([]Comment, error)
}
