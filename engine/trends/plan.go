package trends

import (
	"strings"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/youtube"
)

const (
	// StorySuffix is appended to the query in story-niche mode.
	StorySuffix = " história"

	DefaultMinDurationMinutes = 8
	DefaultMaxDurationMinutes = 120

	DefaultMaxPages  = 3
	AdvancedMaxPages = 6
	TurboMaxPages    = 10

	DefaultResultLimit = 50
	TurboResultLimit   = 200
)

// LookbackDays maps a period label ("24H", "15 Dias", ...) to the search
// window in days. Unknown labels mean 7 days.
func LookbackDays(period string) int {
	p := strings.ToLower(period)
	switch {
	case strings.Contains(p, "24"):
		return 1
	case strings.Contains(p, "15"):
		return 15
	case strings.Contains(p, "30"):
		return 30
	default:
		return 7
	}
}

// DurationWindow returns the accepted duration range in seconds. Nil bounds
// take the defaults. The minimum never drops below 60s and the maximum never
// below the minimum.
func DurationWindow(minMinutes, maxMinutes *int) (minSec, maxSec int) {
	lo, hi := DefaultMinDurationMinutes, DefaultMaxDurationMinutes
	if minMinutes != nil {
		lo = *minMinutes
	}
	if maxMinutes != nil {
		hi = *maxMinutes
	}
	minSec = max(60, lo*60)
	maxSec = max(minSec, hi*60)
	return minSec, maxSec
}

// MaxPages is the number of search pages walked for a mode. Turbo wins.
func MaxPages(advanced, turbo bool) int {
	switch {
	case turbo:
		return TurboMaxPages
	case advanced:
		return AdvancedMaxPages
	default:
		return DefaultMaxPages
	}
}

// ResultLimit caps the number of cards returned.
func ResultLimit(turbo bool) int {
	if turbo {
		return TurboResultLimit
	}
	return DefaultResultLimit
}

// BuildQuery returns the base query (with the story suffix when asked) and
// the query actually sent, which advanced mode wraps in double quotes.
func BuildQuery(query string, story, advanced bool) (base, final string) {
	base = strings.TrimSpace(query)
	if story {
		base += StorySuffix
	}
	final = base
	if advanced {
		final = `"` + base + `"`
	}
	return base, final
}

// plan is a validated query resolved into concrete search settings.
type plan struct {
	niche          string
	query          string
	language       string
	order          string
	publishedAfter time.Time
	region         domain.Region
	maxPages       int
	limit          int
	minSec, maxSec int
}

func newPlan(q domain.TrendQuery, now time.Time) plan {
	base, final := BuildQuery(q.Query, q.StoryNiche, q.Advanced)
	minSec, maxSec := DurationWindow(q.MinDurationMinutes, q.MaxDurationMinutes)
	region := q.Region
	if region == "" {
		region = domain.RegionGlobal
	}
	order := youtube.OrderViewCount
	if q.Advanced {
		order = youtube.OrderRelevance
	}
	return plan{
		niche:          strings.TrimSpace(q.Query),
		query:          final,
		language:       DetectLanguage(base),
		order:          order,
		publishedAfter: now.Add(-time.Duration(LookbackDays(q.Period)) * 24 * time.Hour),
		region:         region,
		maxPages:       MaxPages(q.Advanced, q.Turbo),
		limit:          ResultLimit(q.Turbo),
		minSec:         minSec,
		maxSec:         maxSec,
	}
}

func (p plan) searchParams() youtube.SearchParams {
	return youtube.SearchParams{
		Query:             p.query,
		PublishedAfter:    p.publishedAfter,
		Order:             p.order,
		RelevanceLanguage: p.language,
		VideoDuration:     "any",
		MaxResults:        youtube.MaxResultsPerPage,
	}
}
