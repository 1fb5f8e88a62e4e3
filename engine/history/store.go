// Package history records trend runs in Neo4j so that videos can be tracked
// across searches:
//
//	(:TrendRun)-[:SURFACED {rank, score, label, views}]->(:Video)
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/pkg/repo"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Run is one stored trend search.
type Run struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	Region          string    `json:"region"`
	Period          string    `json:"period"`
	Turbo           bool      `json:"turbo"`
	TopEmotion      string    `json:"topEmotion"`
	EngagementLabel string    `json:"engagementLabel"`
	Variation7d     int       `json:"variation7d"`
	Cards           int       `json:"cards"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Observation is a video as seen by one run.
type Observation struct {
	RunID      string            `json:"runId"`
	Query      string            `json:"query"`
	Rank       int               `json:"rank"`
	Score      int               `json:"score"`
	Label      domain.ScoreLabel `json:"label"`
	Views      int64             `json:"views"`
	ObservedAt time.Time         `json:"observedAt"`
}

// Store persists runs. The zero value is not usable; use NewStore.
type Store struct {
	runs  *repo.Neo4jRepo[Run, string]
	now   func() time.Time
	newID func() string
}

// NewStore creates a Store over driver. Options are passed to the
// underlying repository.
func NewStore(driver neo4j.DriverWithContext, opts ...repo.Neo4jOption[Run, string]) *Store {
	return &Store{
		runs:  repo.NewNeo4jRepo[Run, string](driver, "TrendRun", runToMap, runFromRecord, opts...),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func runToMap(r Run) map[string]any {
	return map[string]any{
		"id":              r.ID,
		"query":           r.Query,
		"region":          r.Region,
		"period":          r.Period,
		"turbo":           r.Turbo,
		"topEmotion":      r.TopEmotion,
		"engagementLabel": r.EngagementLabel,
		"variation7d":     int64(r.Variation7d),
		"cards":           int64(r.Cards),
		"createdAt":       r.CreatedAt,
	}
}

func runFromRecord(rec *neo4j.Record) (Run, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Run{}, err
	}
	p := node.Props
	return Run{
		ID:              strProp(p, "id"),
		Query:           strProp(p, "query"),
		Region:          strProp(p, "region"),
		Period:          strProp(p, "period"),
		Turbo:           boolProp(p, "turbo"),
		TopEmotion:      strProp(p, "topEmotion"),
		EngagementLabel: strProp(p, "engagementLabel"),
		Variation7d:     int(intProp(p, "variation7d")),
		Cards:           int(intProp(p, "cards")),
		CreatedAt:       timeProp(p, "createdAt"),
	}, nil
}

const surfacedCypher = `MATCH (r:TrendRun {id: $runId})
UNWIND $cards AS c
MERGE (v:Video {id: c.videoId})
SET v.title = c.title, v.durationSeconds = c.durationSeconds, v.lastViews = c.views
MERGE (r)-[s:SURFACED]->(v)
SET s.rank = c.rank, s.score = c.score, s.label = c.label, s.views = c.views`

// SaveRun stores q and its result and links every card's video to the run.
func (s *Store) SaveRun(ctx context.Context, q domain.TrendQuery, res domain.TrendsResult) (Run, error) {
	run, err := s.runs.Create(ctx, Run{
		ID:              s.newID(),
		Query:           q.Query,
		Region:          string(q.Region),
		Period:          q.Period,
		Turbo:           q.Turbo,
		TopEmotion:      res.TopEmotion,
		EngagementLabel: res.EngagementLabel,
		Variation7d:     res.Variation7d,
		Cards:           len(res.Cards),
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		return Run{}, fmt.Errorf("history: save run: %w", err)
	}
	if len(res.Cards) == 0 {
		return run, nil
	}

	cards := make([]any, len(res.Cards))
	for i, c := range res.Cards {
		cards[i] = map[string]any{
			"videoId":         c.VideoID,
			"title":           c.Keyword,
			"durationSeconds": int64(c.DurationSeconds),
			"views":           c.ViewsSample,
			"rank":            int64(i + 1),
			"score":           int64(c.EngagementScore),
			"label":           string(c.ScoreLabel),
		}
	}
	if err := s.runs.Query(ctx, surfacedCypher, map[string]any{"runId": run.ID, "cards": cards}, nil); err != nil {
		return Run{}, fmt.Errorf("history: link videos: %w", err)
	}
	return run, nil
}

// Run returns one stored run.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	return s.runs.Get(ctx, id)
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.runs.List(ctx, repo.ListOpts{Limit: limit, OrderBy: "createdAt", Desc: true})
}

const observationsCypher = `MATCH (r:TrendRun)-[s:SURFACED]->(:Video {id: $videoId})
RETURN r.id AS runId, r.query AS query, s.rank AS rank, s.score AS score,
       s.label AS label, s.views AS views, r.createdAt AS observedAt
ORDER BY r.createdAt`

// VideoObservations lists every run that surfaced videoID, oldest first.
func (s *Store) VideoObservations(ctx context.Context, videoID string) ([]Observation, error) {
	var out []Observation
	err := s.runs.Query(ctx, observationsCypher, map[string]any{"videoId": videoID}, func(rec *neo4j.Record) error {
		m := rec.AsMap()
		out = append(out, Observation{
			RunID:      strProp(m, "runId"),
			Query:      strProp(m, "query"),
			Rank:       int(intProp(m, "rank")),
			Score:      int(intProp(m, "score")),
			Label:      domain.ScoreLabel(strProp(m, "label")),
			Views:      intProp(m, "views"),
			ObservedAt: timeProp(m, "observedAt"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: observations: %w", err)
	}
	return out, nil
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func timeProp(props map[string]any, key string) time.Time {
	switch v := props[key].(type) {
	case time.Time:
		return v
	case dbtype.LocalDateTime:
		return v.Time()
	}
	return time.Time{}
}
