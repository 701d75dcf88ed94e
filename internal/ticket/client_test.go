package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deskwise/deskwise/internal/config"
)

func TestHTTPClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		switch r.Method + " " + r.URL.Path {
		case "GET /api/tickets/42":
			json.NewEncoder(w).Encode(Ticket{ID: 42, Title: "Cannot login", Status: StatusOpen})
		case "PATCH /api/tickets/42":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["team_id"] != float64(9) {
				t.Errorf("patch body = %v", body)
			}
			w.WriteHeader(http.StatusNoContent)
		case "POST /api/tickets/42/comments":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["is_system"] != true {
				t.Errorf("comment body = %v", body)
			}
			json.NewEncoder(w).Encode(Comment{ID: 1, TicketID: 42, Content: body["content"].(string), IsSystem: true})
		case "GET /api/tickets/42/comments":
			json.NewEncoder(w).Encode([]Comment{{ID: 1, TicketID: 42}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(config.TicketStoreConfig{BaseURL: srv.URL, Token: "tok"})
	ctx := context.Background()

	tk, err := c.GetTicket(ctx, 42)
	if err != nil || tk.Title != "Cannot login" {
		t.Fatalf("GetTicket: %+v, %v", tk, err)
	}

	team := int64(9)
	if err := c.UpdateTicket(ctx, 42, Update{TeamID: &team}); err != nil {
		t.Fatal(err)
	}

	cm, err := c.CreateComment(ctx, 42, "resolved automatically", true)
	if err != nil || !cm.IsSystem {
		t.Fatalf("CreateComment: %+v, %v", cm, err)
	}

	comments, err := c.ListComments(ctx, 42)
	if err != nil || len(comments) != 1 {
		t.Fatalf("ListComments: %v, %v", comments, err)
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(config.TicketStoreConfig{BaseURL: srv.URL})
	if _, err := c.GetTicket(context.Background(), 1); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestUpdateTicketNoFieldsIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewHTTPClient(config.TicketStoreConfig{BaseURL: srv.URL})
	if err := c.UpdateTicket(context.Background(), 1, Update{}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("empty update must not hit the service")
	}
}
