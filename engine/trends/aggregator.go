// Package trends turns a keyword into a ranked list of trend cards: it pages
// through search results, fetches video details in provider-sized batches,
// filters by duration, scores by views and summarises the top of the list.
package trends

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/engine/youtube"
	"github.com/dnastudio/trendscout/pkg/fn"
)

// Searcher is the subset of the YouTube client the aggregator needs.
type Searcher interface {
	Search(ctx context.Context, key string, p youtube.SearchParams) (domain.SearchPage, error)
	Videos(ctx context.Context, key string, ids []string, parts ...string) ([]domain.VideoDetail, error)
}

var _ Searcher = (*youtube.Client)(nil)

// Aggregator runs trend searches. It holds no per-call state, so one value
// can serve concurrent callers.
type Aggregator struct {
	yt            Searcher
	keys          keys.Accessor
	now           func() time.Time
	logger        *slog.Logger
	detailWorkers int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides time.Now, used to compute the lookback window.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithDetailConcurrency fetches up to n detail batches at once. Results keep
// batch order. The default of 1 fetches batches one after another and stops
// at the first failure.
func WithDetailConcurrency(n int) Option {
	return func(a *Aggregator) { a.detailWorkers = n }
}

// New creates an Aggregator.
func New(yt Searcher, k keys.Accessor, opts ...Option) *Aggregator {
	a := &Aggregator{
		yt:            yt,
		keys:          k,
		now:           time.Now,
		logger:        slog.Default(),
		detailWorkers: 1,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// FetchTrends searches for q and returns the ranked, capped cards with their
// summary. It fails with a *domain.ConfigError when no key is available,
// domain.ErrNoVideos when the search yields no ids, and the provider error
// when any call fails.
func (a *Aggregator) FetchTrends(ctx context.Context, q domain.TrendQuery) (domain.TrendsResult, error) {
	key, err := a.keys.Key()
	if err != nil {
		return domain.TrendsResult{}, err
	}
	if err := domain.ValidateTrendQuery(q); err != nil {
		return domain.TrendsResult{}, err
	}

	pl := newPlan(q, a.now())
	pipeline := fn.Then(
		fn.TracedStage("trends.search", a.searchStage(key)),
		fn.Then(
			fn.TracedStage("trends.details", a.detailStage(key)),
			fn.TracedStage("trends.rank", fn.MapStage(pl.rank)),
		),
	)

	start := time.Now()
	res, err := pipeline(ctx, pl).Unwrap()
	if err != nil {
		a.logger.Warn("trend search failed", "query", pl.query, "err", err)
		return domain.TrendsResult{}, err
	}
	a.logger.Info("trend search done",
		"query", pl.query,
		"region", pl.region,
		"cards", len(res.Cards),
		"duration", time.Since(start),
	)
	return res, nil
}

func (a *Aggregator) searchStage(key string) fn.Stage[plan, []string] {
	return func(ctx context.Context, pl plan) fn.Result[[]string] {
		var ids []string
		pages := 0
		for page, err := range Pages(ctx, a.yt, key, pl.searchParams(), pl.maxPages) {
			if err != nil {
				return fn.Err[[]string](err)
			}
			pages++
			ids = append(ids, page.VideoIDs...)
		}
		ids = fn.Unique(ids)
		a.logger.Debug("search pages walked", "pages", pages, "ids", len(ids))
		if len(ids) == 0 {
			return fn.Err[[]string](domain.ErrNoVideos)
		}
		return fn.Ok(ids)
	}
}

func (a *Aggregator) detailStage(key string) fn.Stage[[]string, []domain.VideoDetail] {
	return func(ctx context.Context, ids []string) fn.Result[[]domain.VideoDetail] {
		batches := fn.Chunk(ids, youtube.MaxIDsPerCall)
		fetch := func(batch []string) fn.Result[[]domain.VideoDetail] {
			return fn.FromPair(a.yt.Videos(ctx, key, batch))
		}

		var results []fn.Result[[]domain.VideoDetail]
		if a.detailWorkers > 1 {
			results = fn.ParMapResult(batches, a.detailWorkers, fetch)
		} else {
			for _, b := range batches {
				r := fetch(b)
				if r.IsErr() {
					_, err := r.Unwrap()
					return fn.Err[[]domain.VideoDetail](err)
				}
				results = append(results, r)
			}
		}
		return fn.MapResult(fn.Collect(results), func(parts [][]domain.VideoDetail) []domain.VideoDetail {
			return slices.Concat(parts...)
		})
	}
}

// rank filters details by duration, scores them, sorts by score and caps the
// list before summarising. Records without an id are dropped.
func (p plan) rank(details []domain.VideoDetail) domain.TrendsResult {
	details = fn.Filter(details, func(d domain.VideoDetail) bool { return d.ID != "" })
	details = fn.UniqueBy(details, func(d domain.VideoDetail) string { return d.ID })
	cards := fn.FilterMap(details, func(d domain.VideoDetail) (domain.TrendCard, bool) {
		dur := ParseISODuration(d.Duration)
		if dur < p.minSec || dur > p.maxSec {
			return domain.TrendCard{}, false
		}
		return NewCard(d, dur, p.region, p.niche), true
	})
	slices.SortStableFunc(cards, func(a, b domain.TrendCard) int {
		return cmp.Compare(b.EngagementScore, a.EngagementScore)
	})
	if len(cards) > p.limit {
		cards = cards[:p.limit]
	}
	return Summarize(p.niche, cards)
}
