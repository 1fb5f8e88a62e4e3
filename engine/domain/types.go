// Package domain defines the core types, errors, and validation shared by the
// trendscout engine. It is the validation gate at pipeline entry points.
package domain

// Region is the audience region a trend search targets.
type Region string

const (
	RegionBR     Region = "BR"
	RegionUS     Region = "US"
	RegionES     Region = "ES"
	RegionGlobal Region = "GLOBAL"
)

// ValidRegions is the set of recognised regions.
var ValidRegions = map[Region]bool{
	RegionBR: true, RegionUS: true, RegionES: true, RegionGlobal: true,
}

// ScoreLabel is the ordinal bucket a video's view count falls into.
type ScoreLabel string

const (
	LabelLow      ScoreLabel = "Baixo"
	LabelMedium   ScoreLabel = "Médio"
	LabelHigh     ScoreLabel = "Alto"
	LabelVeryHigh ScoreLabel = "Muito Alto"
	LabelViral    ScoreLabel = "Viral"
)

// Direction is the trend direction derived from an engagement score.
type Direction string

const (
	DirectionUp     Direction = "Subindo"
	DirectionStable Direction = "Estável"
	DirectionDown   Direction = "Caindo"
)

// SearchPage is one page of search results reduced to video ids.
type SearchPage struct {
	VideoIDs      []string
	NextPageToken string
}

// VideoDetail is the validated detail record of a single video.
type VideoDetail struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Duration string `json:"duration"` // ISO-8601, e.g. PT12M3S
	Views    int64  `json:"views"`
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
}

// TrendCard is a scored video as presented to callers.
type TrendCard struct {
	Keyword         string     `json:"keyword"`
	ScoreLabel      ScoreLabel `json:"scoreLabel"`
	EngagementScore int        `json:"engagementScore"`
	Direction       Direction  `json:"direction"`
	AudienceHint    string     `json:"audienceHint"`
	ViewsSample     int64      `json:"viewsSample"`
	AvgViewPerVideo int64      `json:"avgViewPerVideo"`
	Likes           int64      `json:"likes"`
	Comments        int64      `json:"comments"`
	DurationSeconds int        `json:"durationSeconds"`
	VideoID         string     `json:"videoId"`
}

// TrendsResult is the ranked, capped outcome of one trend search.
type TrendsResult struct {
	TopNiche        string      `json:"topNiche"`
	TopEmotion      string      `json:"topEmotion"`
	EngagementLabel string      `json:"engagementLabel"`
	Variation7d     int         `json:"variation7d"`
	Cards           []TrendCard `json:"cards"`
}

// TrendQuery carries the caller's search options. A nil duration bound means
// the default applies.
type TrendQuery struct {
	Query              string `json:"query"`
	Region             Region `json:"region"`
	Period             string `json:"period"`
	StoryNiche         bool   `json:"storyNiche,omitempty"`
	MinDurationMinutes *int   `json:"minDuration,omitempty"`
	MaxDurationMinutes *int   `json:"maxDuration,omitempty"`
	Advanced           bool   `json:"advancedMode,omitempty"`
	Turbo              bool   `json:"turboMode,omitempty"`
}
