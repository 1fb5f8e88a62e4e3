// Package main implements the trendscout API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dnastudio/trendscout/engine/history"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/engine/semantic"
	"github.com/dnastudio/trendscout/engine/titles"
	"github.com/dnastudio/trendscout/engine/trends"
	"github.com/dnastudio/trendscout/engine/writer"
	"github.com/dnastudio/trendscout/engine/youtube"
	"github.com/dnastudio/trendscout/pkg/metrics"
	"github.com/dnastudio/trendscout/pkg/ollama"
	"github.com/dnastudio/trendscout/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds all environment-based configuration. Neo4j, Qdrant and NATS
// are optional; an empty URL disables the feature that needs them.
type Config struct {
	Port        string
	CORSOrigins []string
	GeminiModel string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	QdrantURL   string
	Collection  string
	OllamaURL   string
	OllamaModel string
	EmbedDims   int
	NATSURL     string
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		CORSOrigins: strings.Split(envOr("CORS_ORIGIN", "*"), ","),
		GeminiModel: envOr("GEMINI_MODEL", writer.DefaultModel),
		Neo4jURL:    os.Getenv("NEO4J_URL"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		QdrantURL:   os.Getenv("QDRANT_URL"),
		Collection:  envOr("QDRANT_COLLECTION", "trend_titles"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: envOr("OLLAMA_MODEL", "nomic-embed-text"),
		EmbedDims:   768,
		NATSURL:     os.Getenv("NATS_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "err", err)
	}
	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	ytKeys, geminiKeys := keys.YouTube(), keys.Gemini()

	yt := youtube.New(youtube.WithLogger(logger))
	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		Name:          "gemini",
		FailThreshold: 5,
		Timeout:       30 * time.Second,
		HalfOpenMax:   1,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
			reg.Gauge(metrics.WithLabels("breaker_state", "name", name), "Circuit breaker state (0 closed, 1 open, 2 half-open).").Set(int64(to))
		},
	})
	gemini := writer.NewClient(geminiKeys,
		writer.WithModel(cfg.GeminiModel),
		writer.WithBreaker(breaker),
		writer.WithLogger(logger),
	)

	s := &server{
		trends:    trends.New(yt, ytKeys, trends.WithLogger(logger)),
		ytKeys:    yt,
		llmKeys:   gemini,
		writer:    writer.NewService(gemini, titles.NewResearcher(yt, ytKeys, logger), logger),
		metrics:   reg,
		logger:    logger,
		bgTimeout: 2 * time.Minute,
	}

	// --- Neo4j run history ---
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		s.history = history.NewStore(driver)
		logger.Info("run history enabled", "neo4j", cfg.Neo4jURL)
	}

	// --- Qdrant title index ---
	if cfg.QdrantURL != "" {
		idx, err := semantic.New(cfg.QdrantURL, cfg.Collection, ollama.NewEmbedClient(cfg.OllamaURL, cfg.OllamaModel))
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer idx.Close()
		if err := idx.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
			return err
		}
		s.titles = idx
		logger.Info("title index enabled", "qdrant", cfg.QdrantURL, "collection", cfg.Collection)
	}

	// --- NATS result events ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("trendscout-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		s.publish = natsPublisher(nc)
		logger.Info("result events enabled", "nats", cfg.NATSURL)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.routes(cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	s.wg.Wait()
	return nil
}
