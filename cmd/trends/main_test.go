package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/pkg/natsutil"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func parse(t *testing.T, args ...string) (options, error) {
	t.Helper()
	fs := flag.NewFlagSet("trends", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return parseFlags(fs, args)
}

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parse(t, "-query", "sogra")
	if err != nil {
		t.Fatal(err)
	}
	if o.query.Region != domain.RegionBR || o.query.Period != "7d" {
		t.Fatalf("unexpected defaults %+v", o.query)
	}
	if o.query.MinDurationMinutes != nil || o.query.MaxDurationMinutes != nil {
		t.Fatal("duration bounds should be absent by default")
	}
	if o.concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", o.concurrency)
	}
}

func TestParseFlags_Durations(t *testing.T) {
	o, err := parse(t, "-query", "sogra", "-min", "0", "-max", "30", "-turbo", "-region", "US")
	if err != nil {
		t.Fatal(err)
	}
	if o.query.MinDurationMinutes == nil || *o.query.MinDurationMinutes != 0 {
		t.Fatal("expected min 0 to be kept")
	}
	if o.query.MaxDurationMinutes == nil || *o.query.MaxDurationMinutes != 30 {
		t.Fatal("expected max 30")
	}
	if !o.query.Turbo || o.query.Region != domain.RegionUS {
		t.Fatalf("unexpected query %+v", o.query)
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	_, err := parse(t)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected empty query error, got %v", err)
	}

	if _, err := parse(t, "-query", "x", "-region", "FR"); !errors.Is(err, domain.ErrInvalidRegion) {
		t.Fatalf("expected invalid region, got %v", err)
	}

	if _, err := parse(t, "-validate-key"); err != nil {
		t.Fatalf("validate-key needs no query: %v", err)
	}
}

func TestRun_Remote(t *testing.T) {
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
	_, err = natsutil.Respond(nc, domain.SubjectTrendsFetch, "", func(_ context.Context, q domain.TrendQuery) (domain.TrendsResult, error) {
		return domain.TrendsResult{TopNiche: q.Query, Cards: []domain.TrendCard{{Keyword: "k", VideoID: "v"}}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	nc.Flush()

	var out bytes.Buffer
	o := options{apiKey: "k", natsURL: srv.ClientURL(), query: domain.TrendQuery{Query: "sogra", Region: domain.RegionBR}}
	if err := run(context.Background(), o, &out); err != nil {
		t.Fatal(err)
	}
	var res domain.TrendsResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TopNiche != "sogra" || len(res.Cards) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}
