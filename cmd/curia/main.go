package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nidhogg/curia/internal/api"
	"github.com/nidhogg/curia/internal/archive"
	"github.com/nidhogg/curia/internal/config"
	"github.com/nidhogg/curia/internal/event"
	"github.com/nidhogg/curia/internal/gateway"
	"github.com/nidhogg/curia/internal/graph"
	"github.com/nidhogg/curia/internal/mirror"
	"github.com/nidhogg/curia/internal/oratory"
	"github.com/nidhogg/curia/internal/provider"
	"github.com/nidhogg/curia/internal/relation"
	"github.com/nidhogg/curia/internal/senate"
	pgstore "github.com/nidhogg/curia/internal/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Curia...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/curia.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	// Pick the orator: LLM-backed when providers exist, deterministic
	// fallback otherwise.
	var orator oratory.Orator = oratory.Fallback{}
	if !router.Empty() {
		for _, mc := range cfg.Roster {
			if mc.Provider != "" {
				router.Bind(mc.ID, mc.Provider)
			}
		}
		orator = oratory.NewLLMOrator(router, logger)
	} else {
		logger.Info("no providers configured, using deterministic orator")
	}

	// Event bus
	bus := event.NewBus(logger)

	// Session calendar
	cal, err := senate.NewCalendar(cfg.Calendar.ForbiddenWeekdays, cfg.Calendar.ForbiddenDates, logger)
	if err != nil {
		logger.Fatal("invalid calendar", zap.Error(err))
	}

	// Assembly and roster
	assembly := senate.NewAssembly(bus, cal, orator, relation.DefaultConfig(), logger)
	for _, mc := range cfg.Roster {
		if _, err := assembly.AddMember(senate.Profile{
			ID: mc.ID, Name: mc.Name, Faction: mc.Faction, Rank: mc.Rank,
		}); err != nil {
			logger.Fatal("roster load failed", zap.String("id", mc.ID), zap.Error(err))
		}
	}
	if cfg.Simulation.FactionSameSeed != 0 || cfg.Simulation.FactionOtherSeed != 0 {
		assembly.SeedFactions(cfg.Simulation.FactionSameSeed, cfg.Simulation.FactionOtherSeed)
	}

	// Initialize PostgreSQL store
	var store *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			dir := cfg.Database.Postgres.MigrationsDir
			if dir == "" {
				dir = "migrations"
			}
			if mErr := ps.Migrate(context.Background(), dir); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			store = ps
		}
	}

	// Restore persisted state
	if store != nil {
		for _, m := range assembly.Members() {
			records, loadErr := store.LoadRelationships(context.Background(), m.ID)
			if loadErr != nil {
				logger.Warn("relationship load failed", zap.String("member", m.ID), zap.Error(loadErr))
			} else {
				m.Relations().Restore(records)
			}
			items, loadErr := store.LoadMemories(context.Background(), m.ID)
			if loadErr != nil {
				logger.Warn("memory load failed", zap.String("member", m.ID), zap.Error(loadErr))
			} else {
				m.Memory().Restore(items)
			}
		}
		logger.Info("Roster state restored from DB")
	}

	// Redis event mirror
	var eventMirror *mirror.Mirror
	if cfg.Database.Redis.URL != "" {
		em, mErr := mirror.New(cfg.Database.Redis.URL, logger)
		if mErr != nil {
			logger.Warn("Redis unavailable, running without event mirror", zap.Error(mErr))
		} else {
			em.Attach(bus)
			eventMirror = em
		}
	}

	// Neo4j relationship graph
	var relGraph *graph.Archive
	if cfg.Database.Neo4j.URI != "" {
		gr, gErr := graph.New(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without relationship graph", zap.Error(gErr))
		} else {
			relGraph = gr
		}
	}

	// Qdrant speech archive
	var speeches *archive.SpeechArchive
	if cfg.Database.Qdrant.Host != "" && cfg.Embedding.Endpoint != "" {
		embedder := archive.NewAPIEmbedder(archive.EmbedderConfig{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			Dimension: cfg.Embedding.Dimension,
		})
		sa, aErr := archive.New(cfg.Database.Qdrant.Host, cfg.Database.Qdrant.Port, embedder, logger)
		if aErr != nil {
			logger.Warn("Qdrant unavailable, running without speech archive", zap.Error(aErr))
		} else {
			sa.Attach(bus)
			speeches = sa
		}
	}

	// Transcript gateway
	transcriber := gateway.NewTranscriber(func(id string) string {
		if m, ok := assembly.Member(id); ok {
			return m.Name
		}
		return id
	}, logger)
	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		transcriber.Register(gateway.NewSlackSink(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.Channel, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		ds, dErr := gateway.NewDiscordSink(cfg.Gateway.Discord.BotToken, cfg.Gateway.Discord.Channel, logger)
		if dErr != nil {
			logger.Warn("Discord unavailable, running without discord transcript", zap.Error(dErr))
		} else {
			transcriber.Register(ds)
		}
	}
	transcriber.Attach(bus)

	// Persist relationship snapshots at every session boundary.
	if store != nil || relGraph != nil {
		bus.Subscribe(event.KindSessionEnd, -1<<20, func(ev event.Event) error {
			ctx := context.Background()
			for _, m := range assembly.Members() {
				snap := m.RelationSnapshot()
				if store != nil {
					if err := store.SaveRelationships(ctx, snap); err != nil {
						logger.Warn("relationship save failed", zap.String("member", m.ID), zap.Error(err))
					}
					if err := store.SaveMemories(ctx, m.ID, m.Memory().Items()); err != nil {
						logger.Warn("memory save failed", zap.String("member", m.ID), zap.Error(err))
					}
				}
				if relGraph != nil {
					if err := relGraph.Snapshot(ctx, snap); err != nil {
						logger.Warn("graph snapshot failed", zap.String("member", m.ID), zap.Error(err))
					}
				}
			}
			return nil
		})
	}

	// Build HTTP handler
	handler := api.NewHandler(assembly, store, relGraph, speeches, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Curia listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Curia...")
	ctx := context.Background()
	srv.Shutdown(ctx)
	transcriber.Close()
	if speeches != nil {
		speeches.Close()
	}
	if relGraph != nil {
		relGraph.Close(ctx)
	}
	if eventMirror != nil {
		eventMirror.Close()
	}
	if store != nil {
		store.Close()
	}
}
