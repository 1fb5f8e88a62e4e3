package domain

import "time"

// NATS subjects.
const (
	// SubjectTrendsFetch serves TrendQuery requests.
	SubjectTrendsFetch = "trends.fetch"
	// SubjectTrendsResults carries a TrendsEvent for every completed search.
	SubjectTrendsResults = "trends.results"
)

// TrendsEvent announces a completed trend search.
type TrendsEvent struct {
	RunID  string       `json:"runId,omitempty"`
	Query  TrendQuery   `json:"query"`
	Result TrendsResult `json:"result"`
	At     time.Time    `json:"at"`
}
