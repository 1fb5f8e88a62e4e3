package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/history"
	"github.com/dnastudio/trendscout/engine/semantic"
	"github.com/dnastudio/trendscout/engine/writer"
	"github.com/dnastudio/trendscout/pkg/metrics"
	"github.com/dnastudio/trendscout/pkg/mid"
	"github.com/dnastudio/trendscout/pkg/natsutil"
	"github.com/dnastudio/trendscout/pkg/repo"
	"github.com/dnastudio/trendscout/pkg/resilience"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"
)

const maxBodyBytes = 1 << 20

type trendFetcher interface {
	FetchTrends(ctx context.Context, q domain.TrendQuery) (domain.TrendsResult, error)
}

type keyValidator interface {
	ValidateKey(ctx context.Context, key string) error
}

type contentWriter interface {
	Titles(ctx context.Context, brief writer.TitleBrief) ([]writer.ScoredTitle, error)
	Concepts(ctx context.Context, p writer.ScriptParams) ([]writer.Concept, error)
	Script(ctx context.Context, p writer.ScriptParams, c writer.Concept) (writer.Script, error)
	AutoAdjust(ctx context.Context, s writer.Script, charsPerBlock int) (writer.Script, error)
}

type runHistory interface {
	SaveRun(ctx context.Context, q domain.TrendQuery, res domain.TrendsResult) (history.Run, error)
	Run(ctx context.Context, id string) (history.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]history.Run, error)
	VideoObservations(ctx context.Context, videoID string) ([]history.Observation, error)
}

type titleIndex interface {
	Index(ctx context.Context, query string, region domain.Region, cards []domain.TrendCard) (int, error)
	Similar(ctx context.Context, text string, topK int, region domain.Region) ([]semantic.SimilarTitle, error)
}

var (
	_ runHistory = (*history.Store)(nil)
	_ titleIndex = (*semantic.TitleIndex)(nil)
)

// server holds the API dependencies. history and titles are nil when their
// backing store is not configured.
type server struct {
	trends  trendFetcher
	ytKeys  keyValidator
	llmKeys keyValidator
	writer  contentWriter
	history runHistory
	titles  titleIndex
	publish func(ctx context.Context, subject string, v any) error
	metrics *metrics.Registry
	logger  *slog.Logger

	bgTimeout time.Duration
	wg        sync.WaitGroup
}

func natsPublisher(nc *nats.Conn) func(context.Context, string, any) error {
	return func(ctx context.Context, subject string, v any) error {
		return natsutil.Publish(ctx, nc, subject, v)
	}
}

func (s *server) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mid.Recover(s.logger))
	r.Use(mid.Logger(s.logger))
	r.Use(mid.Metrics(s.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Run-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(mid.OTel("trendscout-api"))

		r.Get("/health", handleHealth)
		r.Post("/trends", s.handleTrends)
		r.Post("/keys/youtube/validate", s.handleValidateKey(s.ytKeys))
		r.Post("/keys/gemini/validate", s.handleValidateKey(s.llmKeys))
		r.Post("/titles", s.handleTitles)
		r.Get("/titles/similar", s.handleSimilarTitles)
		r.Post("/scripts/concepts", s.handleConcepts)
		r.Post("/scripts", s.handleScript)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleRun)
		r.Get("/videos/{id}/observations", s.handleObservations)
	})
	return r
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleTrends(w http.ResponseWriter, r *http.Request) {
	var q domain.TrendQuery
	if !decode(w, r, &q) {
		return
	}
	if q.Region == "" {
		q.Region = domain.RegionBR
	}
	res, err := s.trends.FetchTrends(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ev := domain.TrendsEvent{Query: q, Result: res, At: time.Now().UTC()}
	if s.history != nil {
		run, err := s.history.SaveRun(r.Context(), q, res)
		if err != nil {
			s.logger.Warn("run history not saved", "err", err, "query", q.Query)
		} else {
			ev.RunID = run.ID
			w.Header().Set("X-Run-Id", run.ID)
		}
	}
	s.afterTrends(r.Context(), ev)
	writeJSON(w, http.StatusOK, res)
}

// afterTrends indexes the cards and announces the result without holding up
// the response.
func (s *server) afterTrends(ctx context.Context, ev domain.TrendsEvent) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.bgTimeout)
		defer cancel()

		if s.titles != nil {
			n, err := s.titles.Index(ctx, ev.Query.Query, ev.Query.Region, ev.Result.Cards)
			if err != nil {
				s.logger.Warn("title indexing failed", "err", err, "query", ev.Query.Query)
			} else {
				s.metrics.Counter("titles_indexed_total", "Video titles written to the similarity index.").Add(int64(n))
			}
		}
		if s.publish != nil {
			if err := s.publish(ctx, domain.SubjectTrendsResults, ev); err != nil {
				s.logger.Warn("trend event not published", "err", err)
			}
		}
	}()
}

type validateKeyRequest struct {
	Key string `json:"key"`
}

type validateKeyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (s *server) handleValidateKey(v keyValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateKeyRequest
		if !decode(w, r, &req) {
			return
		}
		if err := v.ValidateKey(r.Context(), req.Key); err != nil {
			writeJSON(w, http.StatusOK, validateKeyResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, validateKeyResponse{Valid: true})
	}
}

func (s *server) handleTitles(w http.ResponseWriter, r *http.Request) {
	var brief writer.TitleBrief
	if !decode(w, r, &brief) {
		return
	}
	out, err := s.writer.Titles(r.Context(), brief)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"titles": out})
}

func (s *server) handleSimilarTitles(w http.ResponseWriter, r *http.Request) {
	if s.titles == nil {
		writeMessage(w, http.StatusServiceUnavailable, "title index disabled")
		return
	}
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		writeMessage(w, http.StatusBadRequest, "q is required")
		return
	}
	out, err := s.titles.Similar(r.Context(), text, intParam(r, "limit", 10), domain.Region(r.URL.Query().Get("region")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"titles": out})
}

func (s *server) handleConcepts(w http.ResponseWriter, r *http.Request) {
	var p writer.ScriptParams
	if !decode(w, r, &p) {
		return
	}
	out, err := s.writer.Concepts(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"concepts": out})
}

type scriptRequest struct {
	Params     writer.ScriptParams `json:"params"`
	Concept    writer.Concept      `json:"concept"`
	AutoAdjust bool                `json:"autoAdjust,omitempty"`
}

func (s *server) handleScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if !decode(w, r, &req) {
		return
	}
	script, err := s.writer.Script(r.Context(), req.Params, req.Concept)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AutoAdjust {
		adjusted, err := s.writer.AutoAdjust(r.Context(), script, req.Params.CharsPerBlock)
		if err != nil {
			s.logger.Warn("auto adjust failed, returning draft", "err", err)
		} else {
			script = adjusted
		}
	}
	writeJSON(w, http.StatusOK, script)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeMessage(w, http.StatusServiceUnavailable, "run history disabled")
		return
	}
	runs, err := s.history.RecentRuns(r.Context(), intParam(r, "limit", 20))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeMessage(w, http.StatusServiceUnavailable, "run history disabled")
		return
	}
	run, err := s.history.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeMessage(w, http.StatusServiceUnavailable, "run history disabled")
		return
	}
	obs, err := s.history.VideoObservations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if obs == nil {
		obs = []history.Observation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"observations": obs})
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func intParam(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 100)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	var (
		cfgErr *domain.ConfigError
		valErr *domain.ValidationError
		upErr  *domain.UpstreamError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.Is(err, domain.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoVideos), errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &upErr):
		if upErr.Quota() {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNoOutput):
		return http.StatusBadGateway
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		if status == http.StatusInternalServerError {
			writeMessage(w, status, "internal server error")
			return
		}
	}
	writeMessage(w, status, err.Error())
}
