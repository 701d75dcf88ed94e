package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deskwise/deskwise/internal/config"
)

// HTTPClient talks to the external ticket service over its REST surface.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client for the configured ticket service.
func NewHTTPClient(cfg config.TicketStoreConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// GetTicket fetches one ticket by id.
func (c *HTTPClient) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	var t Ticket
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tickets/%d", id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTicket patches the fields set in update.
func (c *HTTPClient) UpdateTicket(ctx context.Context, id int64, update Update) error {
	body := map[string]any{}
	if update.TeamID != nil {
		body["team_id"] = *update.TeamID
	}
	if update.AssignedTo != nil {
		body["assigned_to"] = *update.AssignedTo
	}
	if update.Priority != nil {
		body["priority"] = *update.Priority
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/tickets/%d", id), body, nil)
}

// CreateComment posts a comment on the ticket thread.
func (c *HTTPClient) CreateComment(ctx context.Context, ticketID int64, content string, isSystem bool) (*Comment, error) {
	var out Comment
	body := map[string]any{"content": content, "is_system": isSystem}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tickets/%d/comments", ticketID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListComments fetches the ticket's comment thread.
func (c *HTTPClient) ListComments(ctx context.Context, ticketID int64) ([]Comment, error) {
	var out []Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tickets/%d/comments", ticketID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ticket service %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
