package titles

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/engine/youtube"
)

const (
	scoreSearchResults = 8
	viralSearchResults = 25
	viralTitleCount    = 10
	channelTitleCount  = 10
)

// YouTube is the subset of the YouTube client the researcher needs.
type YouTube interface {
	Search(ctx context.Context, key string, p youtube.SearchParams) (domain.SearchPage, error)
	Videos(ctx context.Context, key string, ids []string, parts ...string) ([]domain.VideoDetail, error)
	ChannelIDForHandle(ctx context.Context, key, handle string) (string, error)
	ChannelTitles(ctx context.Context, key, channelID string, n int) ([]string, error)
}

var _ YouTube = (*youtube.Client)(nil)

// Researcher looks up real titles and scores candidates against them.
type Researcher struct {
	yt     YouTube
	keys   keys.Accessor
	logger *slog.Logger
}

// NewResearcher creates a Researcher. A nil logger means slog.Default().
func NewResearcher(yt YouTube, k keys.Accessor, logger *slog.Logger) *Researcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Researcher{yt: yt, keys: k, logger: logger}
}

// ScoreTitle rates title by the statistics of the most relevant existing
// videos for it. Any failure yields NeutralScore.
func (r *Researcher) ScoreTitle(ctx context.Context, title string, lang Language) Score {
	videos, err := r.relevantVideos(ctx, title, lang, scoreSearchResults)
	if err != nil {
		r.logger.Warn("title scoring failed, using neutral score", "title", title, "err", err)
		return NeutralScore
	}
	return ScoreFromStats(videos)
}

// ViralTitles returns the titles of the most viewed relevant videos for
// keyword, best first.
func (r *Researcher) ViralTitles(ctx context.Context, keyword string, lang Language) ([]string, error) {
	videos, err := r.relevantVideos(ctx, keyword, lang, viralSearchResults)
	if err != nil {
		return nil, err
	}
	videos = slices.DeleteFunc(videos, func(v domain.VideoDetail) bool { return v.Title == "" })
	slices.SortStableFunc(videos, func(a, b domain.VideoDetail) int { return cmp.Compare(b.Views, a.Views) })

	out := make([]string, 0, viralTitleCount)
	for _, v := range videos[:min(viralTitleCount, len(videos))] {
		out = append(out, v.Title)
	}
	return out, nil
}

// ChannelTitles returns the top titles of the channel behind channelURL. URLs
// without an @handle, or unknown handles, give an empty list.
func (r *Researcher) ChannelTitles(ctx context.Context, channelURL string) ([]string, error) {
	handle := youtube.ExtractHandle(channelURL)
	if handle == "" {
		return nil, nil
	}
	key, err := r.keys.Key()
	if err != nil {
		return nil, err
	}
	id, err := r.yt.ChannelIDForHandle(ctx, key, handle)
	if err != nil || id == "" {
		return nil, err
	}
	return r.yt.ChannelTitles(ctx, key, id, channelTitleCount)
}

func (r *Researcher) relevantVideos(ctx context.Context, q string, lang Language, n int) ([]domain.VideoDetail, error) {
	key, err := r.keys.Key()
	if err != nil {
		return nil, err
	}
	page, err := r.yt.Search(ctx, key, youtube.SearchParams{
		Query:      q,
		RegionCode: string(RegionForLanguage(lang)),
		Order:      youtube.OrderRelevance,
		MaxResults: n,
	})
	if err != nil {
		return nil, err
	}
	if len(page.VideoIDs) == 0 {
		return nil, nil
	}
	return r.yt.Videos(ctx, key, page.VideoIDs, "statistics", "snippet")
}
