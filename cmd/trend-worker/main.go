// Command trend-worker serves trend searches over NATS. Requests on
// trends.fetch are load-balanced across workers of the same queue group and
// every completed search is announced on trends.results.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/history"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/engine/trends"
	"github.com/dnastudio/trendscout/engine/youtube"
	"github.com/dnastudio/trendscout/pkg/metrics"
	"github.com/dnastudio/trendscout/pkg/natsutil"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const queueGroup = "trend-workers"

var met = metrics.New()

var (
	mRequests = func(outcome string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("trendscout_worker_requests_total", "outcome", outcome), "Trend searches served")
	}
	mDuration = met.Histogram("trendscout_worker_search_duration_seconds", "Trend search latency", []float64{0.5, 1, 2.5, 5, 10, 30, 60})
	mCards    = met.Histogram("trendscout_worker_cards", "Cards per result", []float64{0, 10, 25, 50, 100, 200})
	mInFlight = met.Gauge("trendscout_worker_in_flight", "Searches currently running")
)

type trendFetcher interface {
	FetchTrends(ctx context.Context, q domain.TrendQuery) (domain.TrendsResult, error)
}

type runSaver interface {
	SaveRun(ctx context.Context, q domain.TrendQuery, res domain.TrendsResult) (history.Run, error)
}

type worker struct {
	trends  trendFetcher
	runs    runSaver
	publish func(ctx context.Context, ev domain.TrendsEvent) error
	timeout time.Duration
	log     *slog.Logger
}

// handle runs one search. History and event failures are logged and never
// fail the request.
func (w *worker) handle(ctx context.Context, q domain.TrendQuery) (domain.TrendsResult, error) {
	if q.Region == "" {
		q.Region = domain.RegionBR
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	mInFlight.Inc()
	defer mInFlight.Dec()
	start := time.Now()

	res, err := w.trends.FetchTrends(ctx, q)
	mDuration.Since(start)
	if err != nil {
		mRequests(outcome(err)).Inc()
		w.log.Warn("trend search failed", "query", q.Query, "err", err)
		return domain.TrendsResult{}, err
	}
	mRequests("ok").Inc()
	mCards.Observe(float64(len(res.Cards)))

	ev := domain.TrendsEvent{Query: q, Result: res, At: time.Now().UTC()}
	if w.runs != nil {
		if run, err := w.runs.SaveRun(ctx, q, res); err != nil {
			w.log.Warn("run history not saved", "query", q.Query, "err", err)
		} else {
			ev.RunID = run.ID
		}
	}
	if err := w.publish(ctx, ev); err != nil {
		w.log.Warn("trend event not published", "err", err)
	}
	w.log.Info("trend search served", "query", q.Query, "region", q.Region, "cards", len(res.Cards), "duration", time.Since(start))
	return res, nil
}

func outcome(err error) string {
	var ue *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrNoVideos):
		return "empty"
	case errors.As(err, &ue) && ue.Quota():
		return "quota"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", "err", err)
	}

	concurrency, _ := strconv.Atoi(envOr("DETAIL_CONCURRENCY", "4"))
	var (
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS URL")
		metricsAddr = flag.String("metrics-addr", envOr("METRICS_ADDR", ":9091"), "metrics listen address")
		neo4jURL    = flag.String("neo4j", os.Getenv("NEO4J_URL"), "Neo4j bolt URL; empty disables run history")
		neo4jUser   = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		workers     = flag.Int("concurrency", concurrency, "parallel detail requests per search")
		timeout     = flag.Duration("timeout", 2*time.Minute, "per-search timeout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := met.ListenAndServe(ctx, *metricsAddr); err != nil {
			log.Error("metrics server failed", "err", err)
		}
	}()

	nc, err := nats.Connect(*natsURL, nats.Name("trend-worker"))
	if err != nil {
		log.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected to NATS", "url", *natsURL)

	w := &worker{
		trends: trends.New(youtube.New(youtube.WithLogger(log)), keys.YouTube(),
			trends.WithLogger(log), trends.WithDetailConcurrency(*workers)),
		publish: func(ctx context.Context, ev domain.TrendsEvent) error {
			return natsutil.Publish(ctx, nc, domain.SubjectTrendsResults, ev)
		},
		timeout: *timeout,
		log:     log,
	}

	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			log.Error("neo4j driver failed", "err", err)
			os.Exit(1)
		}
		defer driver.Close(context.Background())
		w.runs = history.NewStore(driver)
		log.Info("run history enabled", "neo4j", *neo4jURL)
	}

	sub, err := natsutil.Respond(nc, domain.SubjectTrendsFetch, queueGroup, w.handle)
	if err != nil {
		log.Error("subscribe failed", "err", err)
		os.Exit(1)
	}
	log.Info("trend worker ready", "subject", domain.SubjectTrendsFetch, "queue", queueGroup)

	<-ctx.Done()
	log.Info("shutting down")
	if err := sub.Drain(); err != nil {
		log.Warn("subscription drain failed", "err", err)
	}
	if err := nc.Drain(); err != nil {
		log.Warn("connection drain failed", "err", err)
	}
}
