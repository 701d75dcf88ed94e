package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskwise/deskwise/internal/learning"
	"github.com/deskwise/deskwise/internal/schedule"
	"github.com/deskwise/deskwise/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🎫 deskwise serve")

	a, err := buildApp()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.bus.Dispatch(ctx)

	if a.cfg.Learning.Enabled {
		cron, err := schedule.ParseCron(a.cfg.Learning.Schedule)
		if err != nil {
			fmt.Printf("Learning schedule error: %v\n", err)
			os.Exit(1)
		}
		runner := schedule.NewRunner(30*time.Second, "", a.log)
		runner.Register(&schedule.Job{
			Name: "knowledge-learning",
			Cron: cron,
			Run: func(ctx context.Context) error {
				_, err := a.pipeline.RunLearningPass(ctx)
				if errors.Is(err, learning.ErrAlreadyRunning) {
					return nil
				}
				return err
			},
		})
		go runner.Run(ctx)
	}

	srv := &http.Server{
		Addr:    a.cfg.Serve.Listen,
		Handler: newHandler(a),
	}
	go func() {
		a.log.Info("pipeline service listening", "addr", a.cfg.Serve.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	fmt.Println("Shutdown complete.")
}

// newHandler exposes the pipeline operations to the routing layer.
func newHandler(a *app) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tickets/{id}/created", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "bad ticket id", http.StatusBadRequest)
			return
		}
		// Ticket persistence already happened upstream; the side branch is
		// best-effort and must not hold this request open.
		a.pipeline.OnTicketCreated(context.WithoutCancel(r.Context()), id, nil)
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/tickets/{id}/resolved", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "bad ticket id", http.StatusBadRequest)
			return
		}
		if err := a.pipeline.OnTicketResolved(id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/answer", func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		entry, err := a.pipeline.CachedAnswer(q)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "no cached answer", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, entry)
	})

	mux.HandleFunc("POST /api/feedback", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind   string `json:"kind"`
			ID     int64  `json:"id"`
			Rating int    `json:"rating"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if err := a.pipeline.RecordFeedback(body.Kind, body.ID, body.Rating); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/learning/run", func(w http.ResponseWriter, r *http.Request) {
		result, err := a.pipeline.RunLearningPass(r.Context())
		if errors.Is(err, learning.ErrAlreadyRunning) {
			http.Error(w, "pass already running", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		snap, err := a.gov.Usage()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		counts, err := a.store.LearningCounts()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		faqCount, _ := a.store.FAQCount()
		writeJSON(w, map[string]any{
			"version":     version,
			"usage":       snap,
			"learning":    counts,
			"faq_entries": faqCount,
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
