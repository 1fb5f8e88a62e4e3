package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/history"
	"github.com/dnastudio/trendscout/pkg/natsutil"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type stubTrends struct {
	res domain.TrendsResult
	err error
}

func (s stubTrends) FetchTrends(_ context.Context, q domain.TrendQuery) (domain.TrendsResult, error) {
	if s.err != nil {
		return domain.TrendsResult{}, s.err
	}
	res := s.res
	res.TopNiche = q.Query
	return res, nil
}

type stubRuns struct{ err error }

func (s stubRuns) SaveRun(_ context.Context, q domain.TrendQuery, _ domain.TrendsResult) (history.Run, error) {
	if s.err != nil {
		return history.Run{}, s.err
	}
	return history.Run{ID: "run-" + q.Query}, nil
}

func newWorker(tr trendFetcher, runs runSaver, events *[]domain.TrendsEvent) *worker {
	return &worker{
		trends: tr,
		runs:   runs,
		publish: func(_ context.Context, ev domain.TrendsEvent) error {
			*events = append(*events, ev)
			return nil
		},
		timeout: time.Second,
		log:     slog.New(slog.DiscardHandler),
	}
}

func TestHandle(t *testing.T) {
	var events []domain.TrendsEvent
	w := newWorker(stubTrends{res: domain.TrendsResult{Cards: []domain.TrendCard{{VideoID: "v1"}}}}, stubRuns{}, &events)

	before := mRequests("ok").Value()
	res, err := w.handle(context.Background(), domain.TrendQuery{Query: "sogra"})
	if err != nil {
		t.Fatal(err)
	}
	if res.TopNiche != "sogra" || len(res.Cards) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(events) != 1 || events[0].RunID != "run-sogra" || events[0].Query.Region != domain.RegionBR {
		t.Fatalf("unexpected events %+v", events)
	}
	if got := mRequests("ok").Value(); got != before+1 {
		t.Fatalf("expected ok counter to grow, got %d", got)
	}
}

func TestHandle_HistoryFailure(t *testing.T) {
	var events []domain.TrendsEvent
	w := newWorker(stubTrends{}, stubRuns{err: errors.New("down")}, &events)
	if _, err := w.handle(context.Background(), domain.TrendQuery{Query: "x"}); err != nil {
		t.Fatalf("history failure must not fail the search: %v", err)
	}
	if len(events) != 1 || events[0].RunID != "" {
		t.Fatalf("expected event without run id, got %+v", events)
	}
}

func TestHandle_Error(t *testing.T) {
	var events []domain.TrendsEvent
	w := newWorker(stubTrends{err: domain.ErrNoVideos}, nil, &events)
	before := mRequests("empty").Value()
	if _, err := w.handle(context.Background(), domain.TrendQuery{Query: "x"}); !errors.Is(err, domain.ErrNoVideos) {
		t.Fatalf("expected ErrNoVideos, got %v", err)
	}
	if len(events) != 0 {
		t.Fatal("failed searches publish nothing")
	}
	if mRequests("empty").Value() != before+1 {
		t.Fatal("expected empty outcome counted")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrNoVideos, "empty"},
		{domain.NewUpstreamError("search", 403, []byte("quotaExceeded")), "quota"},
		{domain.NewUpstreamError("search", 500, nil), "error"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("x"), "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestServeOverNATS(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	results := make(chan domain.TrendsEvent, 1)
	if _, err := natsutil.Subscribe(nc, domain.SubjectTrendsResults, func(_ context.Context, ev domain.TrendsEvent) {
		results <- ev
	}); err != nil {
		t.Fatal(err)
	}

	w := &worker{
		trends: stubTrends{},
		publish: func(ctx context.Context, ev domain.TrendsEvent) error {
			return natsutil.Publish(ctx, nc, domain.SubjectTrendsResults, ev)
		},
		timeout: time.Second,
		log:     slog.New(slog.DiscardHandler),
	}
	if _, err := natsutil.Respond(nc, domain.SubjectTrendsFetch, queueGroup, w.handle); err != nil {
		t.Fatal(err)
	}
	nc.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := natsutil.Call[domain.TrendQuery, domain.TrendsResult](ctx, nc, domain.SubjectTrendsFetch, domain.TrendQuery{Query: "sogra"})
	if err != nil {
		t.Fatal(err)
	}
	if res.TopNiche != "sogra" {
		t.Fatalf("unexpected result %+v", res)
	}

	select {
	case ev := <-results:
		if ev.Query.Query != "sogra" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no trends.results event")
	}
}
