package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/deskwise/deskwise/internal/analyzer"
	"github.com/deskwise/deskwise/internal/autoresponse"
	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/faqcache"
	"github.com/deskwise/deskwise/internal/feedback"
	"github.com/deskwise/deskwise/internal/governor"
	"github.com/deskwise/deskwise/internal/learning"
	"github.com/deskwise/deskwise/internal/notify"
	"github.com/deskwise/deskwise/internal/pipeline"
	"github.com/deskwise/deskwise/internal/provider"
	"github.com/deskwise/deskwise/internal/schedule"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/ticket"
)

// app is the assembled component graph behind the serve and learn commands.
type app struct {
	cfg      *config.Config
	store    *store.Service
	gov      *governor.Governor
	pipeline *pipeline.Pipeline
	job      *learning.Job
	bus      *notify.Bus
	kafka    *notify.KafkaSink
	log      *slog.Logger
}

// buildApp loads config and wires every component the pipeline needs.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dataDir, err := config.ExpandHome(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	st, err := store.New(filepath.Join(dataDir, "deskwise.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	prov := provider.NewBedrockProvider(cfg.AI.APIKey, cfg.AI.APIBase, cfg.AI.Model)
	gov := governor.New(cfg.RateLimit, st, nil)
	cache := faqcache.New(cfg.FAQCache, st, log)
	tickets := ticket.NewHTTPClient(cfg.TicketStore)

	lockPath, err := config.ExpandHome(cfg.Learning.LockPath)
	if err != nil {
		return nil, err
	}
	learnCfg := cfg.Learning
	learnCfg.LockPath = lockPath

	an := analyzer.New(cfg.AI, prov, gov, st, log)
	gen := autoresponse.New(cfg.AI, prov, gov, cache, st, log)
	tracker := feedback.New(st, log)
	job := learning.New(learnCfg, cfg.AI, tickets, prov, gov, st, log)

	bus := notify.NewBus(log)
	var kafka *notify.KafkaSink
	if cfg.Notify.Kafka.Enabled {
		kafka = notify.NewKafkaSink(cfg.Notify.Kafka)
		bus.Register(kafka)
	}
	if cfg.Notify.Slack.Enabled {
		bus.Register(notify.NewSlackSink(cfg.Notify.Slack))
	}

	sem := schedule.NewSemaphore(cfg.Serve.MaxSideBranches)
	p := pipeline.New(cfg, tickets, an, gen, cache, tracker, job, st, bus, sem, log)

	return &app{
		cfg:      cfg,
		store:    st,
		gov:      gov,
		pipeline: p,
		job:      job,
		bus:      bus,
		kafka:    kafka,
		log:      log,
	}, nil
}

func (a *app) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	a.store.Close()
}
