// Command trends runs one trend search and prints the ranked result as JSON.
// With -nats the search is handed to a trend-worker instead of run locally.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/engine/trends"
	"github.com/dnastudio/trendscout/engine/youtube"
	"github.com/dnastudio/trendscout/pkg/natsutil"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

type options struct {
	apiKey      string
	natsURL     string
	validate    bool
	concurrency int
	query       domain.TrendQuery
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var (
		o        options
		region   string
		minMins, maxMins int
	)
	fs.StringVar(&o.apiKey, "api-key", "", "YouTube Data API v3 key (default: YOUTUBE_API_KEY)")
	fs.StringVar(&o.natsURL, "nats", "", "NATS URL; when set the search runs on a trend-worker")
	fs.BoolVar(&o.validate, "validate-key", false, "only check that the API key is accepted")
	fs.IntVar(&o.concurrency, "concurrency", 4, "parallel detail requests")
	fs.StringVar(&o.query.Query, "query", "", "search keyword")
	fs.StringVar(&region, "region", string(domain.RegionBR), "audience region: BR, US, ES or GLOBAL")
	fs.StringVar(&o.query.Period, "period", "7d", "lookback period: 24h, 7d, 15d or 30d")
	fs.BoolVar(&o.query.StoryNiche, "story", false, "bias the search towards story channels")
	fs.BoolVar(&o.query.Advanced, "advanced", false, "exact phrase search with more pages")
	fs.BoolVar(&o.query.Turbo, "turbo", false, "search more pages and keep more results")
	fs.IntVar(&minMins, "min", -1, "minimum duration in minutes (-1: default)")
	fs.IntVar(&maxMins, "max", -1, "maximum duration in minutes (-1: default)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	o.query.Region = domain.Region(region)
	if minMins >= 0 {
		o.query.MinDurationMinutes = &minMins
	}
	if maxMins >= 0 {
		o.query.MaxDurationMinutes = &maxMins
	}
	if !o.validate {
		if err := domain.ValidateTrendQuery(o.query); err != nil {
			return options{}, err
		}
	}
	return o, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	accessor := keys.YouTube()
	if o.apiKey != "" {
		accessor = keys.Static("youtube", o.apiKey)
	}
	yt := youtube.New()

	if o.validate {
		key, err := accessor.Key()
		if err != nil {
			return err
		}
		if err := yt.ValidateKey(ctx, key); err != nil {
			return err
		}
		log.Print("youtube key is valid")
		return nil
	}

	var (
		res domain.TrendsResult
		err error
	)
	if o.natsURL != "" {
		res, err = remote(ctx, o.natsURL, o.query)
	} else {
		agg := trends.New(yt, accessor, trends.WithDetailConcurrency(o.concurrency))
		res, err = agg.FetchTrends(ctx, o.query)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	log.Printf("found %d trends for %q", len(res.Cards), o.query.Query)
	return nil
}

func remote(ctx context.Context, url string, q domain.TrendQuery) (domain.TrendsResult, error) {
	nc, err := nats.Connect(url, nats.Name("trendscout-cli"))
	if err != nil {
		return domain.TrendsResult{}, fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()
	return natsutil.Call[domain.TrendQuery, domain.TrendsResult](ctx, nc, domain.SubjectTrendsFetch, q)
}
