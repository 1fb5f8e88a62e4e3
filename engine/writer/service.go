// Package writer drafts titles, script concepts and full scripts with Gemini,
// grounding titles in what already performs on YouTube.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/titles"
	"github.com/dnastudio/trendscout/pkg/fn"
)

const (
	titleCount   = 15
	conceptCount = 3
)

// Generator produces JSON output constrained by a schema.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *Schema, out any) error
}

var _ Generator = (*Client)(nil)

// Researcher supplies reference titles and scores candidates.
type Researcher interface {
	ScoreTitle(ctx context.Context, title string, lang titles.Language) titles.Score
	ViralTitles(ctx context.Context, keyword string, lang titles.Language) ([]string, error)
	ChannelTitles(ctx context.Context, channelURL string) ([]string, error)
}

var _ Researcher = (*titles.Researcher)(nil)

// TitleBrief describes the video titles are requested for.
type TitleBrief struct {
	Niche          string          `json:"niche"`
	Theme          string          `json:"theme"`
	Audience       string          `json:"audience,omitempty"`
	Category       string          `json:"category,omitempty"`
	ReferenceTitle string          `json:"referenceTitle,omitempty"`
	ChannelURL     string          `json:"channelUrl,omitempty"`
	Language       titles.Language `json:"language"`
	CharLimit      int             `json:"charLimit,omitempty"`
}

type titleItem struct {
	Title string `json:"title"`
}

// ScoredTitle is a generated title with its score.
type ScoredTitle struct {
	Title string `json:"title"`
	titles.Score
}

// ScriptParams are the form fields that shape concepts and scripts.
type ScriptParams struct {
	Niche          string `json:"niche"`
	Subniche       string `json:"subniche"`
	Perspective    string `json:"perspective"`
	NarrativeTone  string `json:"narrativeTone"`
	ChapterCount   int    `json:"chapterCount"`
	CharsPerBlock  int    `json:"charsPerBlock"`
	Synopsis       string `json:"synopsis"`
	VideoTitle     string `json:"videoTitle,omitempty"`
	TargetAudience string `json:"targetAudience"`
	Emotion        string `json:"emotion"`
	AgeGroup       string `json:"ageGroup"`
	Pace           string `json:"pace"`
	ScriptStyle    string `json:"scriptStyle"`
	Language       string `json:"language"`
	CustomPrompt   string `json:"customPrompt,omitempty"`
	ModelScript    string `json:"modelScript,omitempty"`
}

// Service drafts content. Scoring of generated titles runs on up to
// ScoreWorkers goroutines.
type Service struct {
	gen          Generator
	research     Researcher
	logger       *slog.Logger
	ScoreWorkers int
}

// NewService creates a Service. A nil logger means slog.Default().
func NewService(gen Generator, research Researcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, research: research, logger: logger, ScoreWorkers: 5}
}

var (
	titleListSchema = &Schema{
		Type: "ARRAY",
		Items: &Schema{
			Type:       "OBJECT",
			Properties: map[string]*Schema{"title": {Type: "STRING"}},
			Required:   []string{"title"},
		},
	}
	conceptListSchema = &Schema{
		Type: "ARRAY",
		Items: &Schema{
			Type: "OBJECT",
			Properties: map[string]*Schema{
				"id":          {Type: "INTEGER"},
				"title":       {Type: "STRING"},
				"synopsis":    {Type: "STRING"},
				"hookPreview": {Type: "STRING"},
			},
			Required: []string{"id", "title", "synopsis", "hookPreview"},
		},
	}
	scriptSchema = &Schema{
		Type: "OBJECT",
		Properties: map[string]*Schema{
			"title": {Type: "STRING"},
			"intro": {Type: "STRING"},
			"chapters": {
				Type: "ARRAY",
				Items: &Schema{
					Type: "OBJECT",
					Properties: map[string]*Schema{
						"title":   {Type: "STRING"},
						"content": {Type: "STRING"},
					},
					Required: []string{"title", "content"},
				},
			},
			"moral": {Type: "STRING"},
			"cta":   {Type: "STRING"},
		},
		Required: []string{"title", "intro", "chapters", "moral", "cta"},
	}
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError(field, value, domain.ErrMissingField)
	}
	return nil
}

// Titles generates up to 15 titles for brief and scores each one against
// YouTube. Research failures only degrade the prompt; they are not fatal.
func (s *Service) Titles(ctx context.Context, brief TitleBrief) ([]ScoredTitle, error) {
	if err := required("niche", brief.Niche); err != nil {
		return nil, err
	}
	if err := required("theme", brief.Theme); err != nil {
		return nil, err
	}
	if brief.Language == "" {
		brief.Language = titles.LangPortuguese
	}
	keyword := titles.BuildKeyword(brief.ReferenceTitle, brief.Theme, brief.Niche)

	var channelTitles []string
	if strings.TrimSpace(brief.ChannelURL) != "" {
		ct, err := s.research.ChannelTitles(ctx, strings.TrimSpace(brief.ChannelURL))
		if err != nil {
			s.logger.Warn("channel titles unavailable", "channel", brief.ChannelURL, "err", err)
		}
		channelTitles = ct
	}
	viral, err := s.research.ViralTitles(ctx, keyword, brief.Language)
	if err != nil {
		s.logger.Warn("viral titles unavailable", "keyword", keyword, "err", err)
		viral = nil
	}

	var raw []titleItem
	prompt := titlesPrompt(brief, keyword, titleCount, channelTitles, viral)
	if err := s.gen.GenerateJSON(ctx, prompt, titleListSchema, &raw); err != nil {
		return nil, fmt.Errorf("writer: titles: %w", err)
	}

	list := fn.FilterMap(raw, func(r titleItem) (string, bool) {
		t := strings.TrimSpace(r.Title)
		return t, t != ""
	})
	if len(list) == 0 {
		return nil, fmt.Errorf("writer: titles: %w", domain.ErrNoOutput)
	}
	list = list[:min(titleCount, len(list))]

	scored := fn.ParMap(list, s.ScoreWorkers, func(t string) ScoredTitle {
		return ScoredTitle{Title: t, Score: s.research.ScoreTitle(ctx, t, brief.Language)}
	})
	s.logger.Info("titles generated", "keyword", keyword, "titles", len(scored),
		"viral_refs", len(viral), "channel_refs", len(channelTitles))
	return scored, nil
}

// Concepts drafts three script concepts.
func (s *Service) Concepts(ctx context.Context, p ScriptParams) ([]Concept, error) {
	if err := required("niche", p.Niche); err != nil {
		return nil, err
	}
	var out []Concept
	if err := s.gen.GenerateJSON(ctx, conceptsPrompt(p, conceptCount), conceptListSchema, &out); err != nil {
		return nil, fmt.Errorf("writer: concepts: %w", err)
	}
	if out == nil {
		out = []Concept{}
	}
	return out, nil
}

func validateScriptParams(p ScriptParams) error {
	if p.ChapterCount <= 0 {
		return domain.NewValidationError("chapterCount", fmt.Sprint(p.ChapterCount), domain.ErrMissingField)
	}
	if p.CharsPerBlock <= 0 {
		return domain.NewValidationError("charsPerBlock", fmt.Sprint(p.CharsPerBlock), domain.ErrMissingField)
	}
	return nil
}

// Script writes the full script for concept and clamps overlong blocks.
func (s *Service) Script(ctx context.Context, p ScriptParams, concept Concept) (Script, error) {
	if err := validateScriptParams(p); err != nil {
		return Script{}, err
	}
	if err := required("concept.title", concept.Title); err != nil {
		return Script{}, err
	}

	var out Script
	if err := s.gen.GenerateJSON(ctx, scriptPrompt(p, concept), scriptSchema, &out); err != nil {
		return Script{}, fmt.Errorf("writer: script: %w", err)
	}
	out = fillScript(out, Script{Title: concept.Title})
	s.logger.Info("script generated", "title", out.Title, "chapters", len(out.Chapters), "chars", out.Chars())
	return ClampScript(out, p.CharsPerBlock), nil
}

// AdjustLength asks the model to grow or shrink s by about delta characters
// while keeping the story. Fields the model drops keep their old value.
func (s *Service) AdjustLength(ctx context.Context, script Script, delta int, expand bool) (Script, error) {
	encoded, err := json.Marshal(script)
	if err != nil {
		return Script{}, err
	}
	var out Script
	if err := s.gen.GenerateJSON(ctx, adjustPrompt(delta, expand, encoded), scriptSchema, &out); err != nil {
		return Script{}, fmt.Errorf("writer: adjust: %w", err)
	}
	return fillScript(out, script), nil
}

// AutoAdjust brings the total length of script near charsPerBlock per
// chapter. Scripts within 10% of a block of the target are only clamped.
func (s *Service) AutoAdjust(ctx context.Context, script Script, charsPerBlock int) (Script, error) {
	blocks := len(script.Chapters)
	if blocks == 0 || charsPerBlock <= 0 {
		return script, nil
	}
	diff := charsPerBlock*blocks - script.Chars()
	if float64(abs(diff)) < float64(charsPerBlock)*0.1 {
		return ClampScript(script, charsPerBlock), nil
	}
	adjusted, err := s.AdjustLength(ctx, script, abs(diff), diff > 0)
	if err != nil {
		return Script{}, err
	}
	return ClampScript(adjusted, charsPerBlock), nil
}

// fillScript replaces empty fields of got with those of prev and names
// untitled chapters.
func fillScript(got, prev Script) Script {
	got.Title = orDefault(got.Title, prev.Title)
	got.Intro = orDefault(got.Intro, prev.Intro)
	got.Moral = orDefault(got.Moral, prev.Moral)
	got.CTA = orDefault(got.CTA, prev.CTA)
	if got.Chapters == nil {
		got.Chapters = slices.Clone(prev.Chapters)
	}
	for i := range got.Chapters {
		var old Chapter
		if i < len(prev.Chapters) {
			old = prev.Chapters[i]
		}
		got.Chapters[i].Title = orDefault(got.Chapters[i].Title, orDefault(old.Title, fmt.Sprintf("Bloco %d", i+1)))
		got.Chapters[i].Content = orDefault(got.Chapters[i].Content, old.Content)
	}
	if got.Chapters == nil {
		got.Chapters = []Chapter{}
	}
	return got
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
