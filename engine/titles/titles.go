// Package titles researches viral video titles on YouTube and scores
// candidate titles against what already performs there.
package titles

import (
	"math"
	"slices"
	"strings"

	"github.com/dnastudio/trendscout/engine/domain"
)

// Language is a title language option.
type Language string

const (
	LangPortuguese Language = "pt-BR"
	LangEnglish    Language = "en-US"
	LangSpanish    Language = "es-ES"
)

// RegionForLanguage is the search region used when researching titles in lang.
func RegionForLanguage(lang Language) domain.Region {
	switch lang {
	case LangPortuguese:
		return domain.RegionBR
	case LangSpanish:
		return domain.RegionES
	default:
		return domain.RegionUS
	}
}

// LanguageFromDisplay maps a UI label such as "English (US)" to a Language.
// Unrecognised labels mean Portuguese.
func LanguageFromDisplay(label string) Language {
	switch {
	case strings.Contains(label, "English"):
		return LangEnglish
	case strings.Contains(label, "Español"):
		return LangSpanish
	default:
		return LangPortuguese
	}
}

// Description is the human name of lang used in prompts.
func (l Language) Description() string {
	switch l {
	case LangPortuguese:
		return "português do Brasil"
	case LangSpanish:
		return "espanhol"
	default:
		return "inglês dos Estados Unidos"
	}
}

// DefaultKeyword is used when no reference, theme or niche is given.
const DefaultKeyword = "drama familiar história emocionante"

// BuildKeyword joins the non-blank parts with " - ".
func BuildKeyword(reference, theme, niche string) string {
	var parts []string
	for _, p := range []string{reference, theme, niche} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return DefaultKeyword
	}
	return strings.Join(parts, " - ")
}

// NormalizeCharLimit keeps a title length target within 30..120, replacing
// too small values with 80.
func NormalizeCharLimit(n int) int {
	switch {
	case n < 30:
		return 80
	case n > 120:
		return 120
	default:
		return n
	}
}

// Tag is the verdict on a title's potential.
type Tag string

const (
	TagViral     Tag = "Viral"
	TagPromising Tag = "Promissor"
	TagMedium    Tag = "Médio"
	TagLow       Tag = "Baixo"
)

// Score is a 0-100 title score with its tag.
type Score struct {
	Tag   Tag `json:"tag"`
	Score int `json:"score"`
}

var (
	// NeutralScore is reported when scoring could not run.
	NeutralScore = Score{Tag: TagPromising, Score: 60}
	// EmptyScore is reported when the search found nothing to compare with.
	EmptyScore = Score{Tag: TagMedium, Score: 50}
)

// TagFor maps a score to its tag.
func TagFor(score int) Tag {
	switch {
	case score >= 80:
		return TagViral
	case score >= 60:
		return TagPromising
	case score >= 40:
		return TagMedium
	default:
		return TagLow
	}
}

// VideoScore rates one comparable video from its views and like rate.
func VideoScore(views, likes int64) int {
	likeRate := 0.0
	if views > 0 && likes >= 0 {
		likeRate = min(float64(likes)/float64(views), 1)
	}
	base := math.Log10(float64(views)+10) * 20
	return clamp(int(math.Round(base + likeRate*40)))
}

// ScoreFromStats averages the three best video scores among comparable videos.
func ScoreFromStats(videos []domain.VideoDetail) Score {
	if len(videos) == 0 {
		return EmptyScore
	}
	scores := make([]int, 0, len(videos))
	for _, v := range videos {
		scores = append(scores, VideoScore(v.Views, v.Likes))
	}
	slices.Sort(scores)
	slices.Reverse(scores)
	top := scores[:min(3, len(scores))]

	sum := 0
	for _, s := range top {
		sum += s
	}
	score := clamp(int(math.Round(float64(sum) / float64(len(top)))))
	return Score{Tag: TagFor(score), Score: score}
}

func clamp(n int) int {
	return max(0, min(100, n))
}
