package titles

import (
	"context"
	"errors"
	"testing"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/engine/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionForLanguage(t *testing.T) {
	assert.Equal(t, domain.RegionBR, RegionForLanguage(LangPortuguese))
	assert.Equal(t, domain.RegionES, RegionForLanguage(LangSpanish))
	assert.Equal(t, domain.RegionUS, RegionForLanguage(LangEnglish))
	assert.Equal(t, domain.RegionUS, RegionForLanguage("fr-FR"))
}

func TestLanguageFromDisplay(t *testing.T) {
	assert.Equal(t, LangEnglish, LanguageFromDisplay("English (US)"))
	assert.Equal(t, LangSpanish, LanguageFromDisplay("Español"))
	assert.Equal(t, LangPortuguese, LanguageFromDisplay("Português (Brasil)"))
	assert.Equal(t, LangPortuguese, LanguageFromDisplay(""))
}

func TestBuildKeyword(t *testing.T) {
	assert.Equal(t, "ref - tema - nicho", BuildKeyword(" ref ", "tema", "nicho"))
	assert.Equal(t, "tema", BuildKeyword("", "tema", "  "))
	assert.Equal(t, DefaultKeyword, BuildKeyword("", " ", ""))
}

func TestNormalizeCharLimit(t *testing.T) {
	assert.Equal(t, 80, NormalizeCharLimit(0))
	assert.Equal(t, 80, NormalizeCharLimit(29))
	assert.Equal(t, 30, NormalizeCharLimit(30))
	assert.Equal(t, 70, NormalizeCharLimit(70))
	assert.Equal(t, 120, NormalizeCharLimit(120))
	assert.Equal(t, 120, NormalizeCharLimit(500))
}

func TestVideoScore(t *testing.T) {
	tests := []struct {
		views, likes int64
		want         int
	}{
		{0, 0, 20},
		{100, 0, 41},
		{1_000, 0, 60},
		{10_000, 0, 80},
		{10, 50, 66},
		{100_000, 5_000, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VideoScore(tt.views, tt.likes), "views=%d likes=%d", tt.views, tt.likes)
	}
}

func TestScoreFromStats(t *testing.T) {
	vids := func(views ...int64) []domain.VideoDetail {
		var out []domain.VideoDetail
		for _, v := range views {
			out = append(out, domain.VideoDetail{Views: v})
		}
		return out
	}

	assert.Equal(t, EmptyScore, ScoreFromStats(nil))
	assert.Equal(t, Score{Tag: TagLow, Score: 20}, ScoreFromStats(vids(0)))
	assert.Equal(t, Score{Tag: TagMedium, Score: 41}, ScoreFromStats(vids(100)))
	assert.Equal(t, Score{Tag: TagPromising, Score: 60}, ScoreFromStats(vids(1_000)))
	// top three of 100, 80, 60, 20
	got := ScoreFromStats([]domain.VideoDetail{
		{Views: 0}, {Views: 100_000, Likes: 5_000}, {Views: 1_000}, {Views: 10_000},
	})
	assert.Equal(t, Score{Tag: TagViral, Score: 80}, got)
}

type fakeYouTube struct {
	ids      []string
	details  []domain.VideoDetail
	err      error
	channel  string
	searches []youtube.SearchParams
	parts    []string
}

func (f *fakeYouTube) Search(_ context.Context, _ string, p youtube.SearchParams) (domain.SearchPage, error) {
	f.searches = append(f.searches, p)
	if f.err != nil {
		return domain.SearchPage{}, f.err
	}
	return domain.SearchPage{VideoIDs: f.ids}, nil
}

func (f *fakeYouTube) Videos(_ context.Context, _ string, _ []string, parts ...string) ([]domain.VideoDetail, error) {
	f.parts = parts
	return f.details, nil
}

func (f *fakeYouTube) ChannelIDForHandle(_ context.Context, _, handle string) (string, error) {
	if handle == "known" {
		return f.channel, nil
	}
	return "", nil
}

func (f *fakeYouTube) ChannelTitles(_ context.Context, _, channelID string, n int) ([]string, error) {
	return []string{channelID + " top"}, nil
}

func newTestResearcher(yt YouTube) *Researcher {
	return NewResearcher(yt, keys.Static("youtube", "k"), nil)
}

func TestScoreTitle(t *testing.T) {
	yt := &fakeYouTube{ids: []string{"a"}, details: []domain.VideoDetail{{ID: "a", Views: 1_000}}}
	got := newTestResearcher(yt).ScoreTitle(context.Background(), "minha sogra", LangSpanish)

	assert.Equal(t, Score{Tag: TagPromising, Score: 60}, got)
	require.Len(t, yt.searches, 1)
	p := yt.searches[0]
	assert.Equal(t, "minha sogra", p.Query)
	assert.Equal(t, "ES", p.RegionCode)
	assert.Equal(t, youtube.OrderRelevance, p.Order)
	assert.Equal(t, 8, p.MaxResults)
	assert.Equal(t, []string{"statistics", "snippet"}, yt.parts)
}

func TestScoreTitleNoResults(t *testing.T) {
	yt := &fakeYouTube{}
	assert.Equal(t, EmptyScore, newTestResearcher(yt).ScoreTitle(context.Background(), "x", LangEnglish))
}

func TestScoreTitleFailureIsNeutral(t *testing.T) {
	yt := &fakeYouTube{err: errors.New("quota")}
	assert.Equal(t, NeutralScore, newTestResearcher(yt).ScoreTitle(context.Background(), "x", LangEnglish))

	r := NewResearcher(&fakeYouTube{}, keys.Static("youtube", ""), nil)
	assert.Equal(t, NeutralScore, r.ScoreTitle(context.Background(), "x", LangEnglish))
}

func TestViralTitles(t *testing.T) {
	var details []domain.VideoDetail
	for i := range 14 {
		details = append(details, domain.VideoDetail{Title: string(rune('a' + i)), Views: int64(i)})
	}
	details = append(details, domain.VideoDetail{Title: "", Views: 1_000_000})
	yt := &fakeYouTube{ids: []string{"x"}, details: details}

	got, err := newTestResearcher(yt).ViralTitles(context.Background(), "sogra", LangPortuguese)
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "m", "l", "k", "j", "i", "h", "g", "f", "e"}, got)
	assert.Equal(t, 25, yt.searches[0].MaxResults)
	assert.Equal(t, "BR", yt.searches[0].RegionCode)
}

func TestViralTitlesError(t *testing.T) {
	yt := &fakeYouTube{err: errors.New("boom")}
	_, err := newTestResearcher(yt).ViralTitles(context.Background(), "sogra", LangPortuguese)
	assert.Error(t, err)
}

func TestChannelTitles(t *testing.T) {
	yt := &fakeYouTube{channel: "UC1"}
	r := newTestResearcher(yt)

	got, err := r.ChannelTitles(context.Background(), "https://youtube.com/@known")
	require.NoError(t, err)
	assert.Equal(t, []string{"UC1 top"}, got)

	got, err = r.ChannelTitles(context.Background(), "https://youtube.com/@unknown")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.ChannelTitles(context.Background(), "not a channel")
	require.NoError(t, err)
	assert.Empty(t, got)
}
