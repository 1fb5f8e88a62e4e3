package trends

import (
	"fmt"
	"strings"

	"github.com/dnastudio/trendscout/engine/domain"
	"golang.org/x/net/html"
)

// EngagementScore maps a view count to a 0-100 score on fixed breakpoints.
func EngagementScore(views int64) int {
	switch {
	case views < 5_000:
		return 15
	case views < 10_000:
		return 30
	case views < 20_000:
		return 50
	case views < 100_000:
		return 70
	case views < 300_000:
		return 90
	default:
		return 100
	}
}

// Label maps a view count to its ordinal bucket. Both 5k-10k and 10k-20k are
// Médio even though their scores differ; downstream consumers rely on it.
func Label(views int64) domain.ScoreLabel {
	switch {
	case views < 5_000:
		return domain.LabelLow
	case views < 10_000:
		return domain.LabelMedium
	case views < 20_000:
		return domain.LabelMedium
	case views < 100_000:
		return domain.LabelHigh
	case views < 300_000:
		return domain.LabelVeryHigh
	default:
		return domain.LabelViral
	}
}

// DirectionFor derives the trend direction from a score.
func DirectionFor(score int) domain.Direction {
	switch {
	case score >= 70:
		return domain.DirectionUp
	case score >= 45:
		return domain.DirectionStable
	default:
		return domain.DirectionDown
	}
}

// AudienceHint is the short audience note shown on a card.
func AudienceHint(views int64, region domain.Region) string {
	switch {
	case views >= 500_000:
		return "Altíssimo volume de buscas."
	case views >= 100_000:
		return "Tendência forte com chance real de viral."
	case views >= 20_000:
		return fmt.Sprintf("Tema em crescimento em %s.", region)
	default:
		return "Volume moderado. Bom para testes."
	}
}

// CleanTitle decodes HTML entities and strips double quotes. An empty title
// falls back to fallback.
func CleanTitle(title, fallback string) string {
	if title == "" {
		title = fallback
	}
	return strings.ReplaceAll(html.UnescapeString(title), `"`, "")
}

// NewCard scores one detail record. durationSec is the parsed duration.
func NewCard(d domain.VideoDetail, durationSec int, region domain.Region, fallbackTitle string) domain.TrendCard {
	score := EngagementScore(d.Views)
	return domain.TrendCard{
		Keyword:         CleanTitle(d.Title, fallbackTitle),
		ScoreLabel:      Label(d.Views),
		EngagementScore: score,
		Direction:       DirectionFor(score),
		AudienceHint:    AudienceHint(d.Views, region),
		ViewsSample:     d.Views,
		AvgViewPerVideo: d.Views,
		Likes:           d.Likes,
		Comments:        d.Comments,
		DurationSeconds: durationSec,
		VideoID:         d.ID,
	}
}

// Summary strings.
const (
	EmotionIntense  = "Mágoa, raiva, choque"
	EmotionCurious  = "Curiosidade, interesse"
	RetentionHigh   = "Alta Retenção"
	RetentionMedium = "Média Retenção"
)

// Summarize builds the result over already sorted and truncated cards.
func Summarize(niche string, cards []domain.TrendCard) domain.TrendsResult {
	if cards == nil {
		cards = []domain.TrendCard{}
	}
	avg := averageScore(cards)

	res := domain.TrendsResult{
		TopNiche:        niche,
		TopEmotion:      EmotionCurious,
		EngagementLabel: RetentionMedium,
		Variation7d:     -6,
		Cards:           cards,
	}
	if avg > 70 {
		res.TopEmotion = EmotionIntense
	}
	if avg > 60 {
		res.EngagementLabel = RetentionHigh
	}
	switch {
	case avg >= 70:
		res.Variation7d = 12
	case avg >= 50:
		res.Variation7d = 4
	}
	return res
}

func averageScore(cards []domain.TrendCard) float64 {
	if len(cards) == 0 {
		return 0
	}
	sum := 0
	for _, c := range cards {
		sum += c.EngagementScore
	}
	return float64(sum) / float64(len(cards))
}
