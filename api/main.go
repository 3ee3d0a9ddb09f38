package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TKamote/tbsnews/internal/ai"
	"github.com/TKamote/tbsnews/internal/config"
	"github.com/TKamote/tbsnews/internal/dedupe"
	"github.com/TKamote/tbsnews/internal/elasticsearch"
	"github.com/TKamote/tbsnews/internal/logger"
	"github.com/TKamote/tbsnews/internal/models"
	"github.com/TKamote/tbsnews/internal/notify"
	"github.com/TKamote/tbsnews/internal/pipeline"
	"github.com/TKamote/tbsnews/internal/sources"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	// A broken store setup keeps the server up; the trigger endpoints
	// answer 503 until the backend is configured.
	var esClient *elasticsearch.Client
	if cfg.ElasticsearchAddr != "" {
		esClient, err = elasticsearch.New(cfg.ElasticsearchAddr, cfg.ClaimsIndex, cfg.LogsIndex, log)
		if err != nil {
			log.Error("init elasticsearch, triggers disabled", slog.Any("err", err))
			esClient = nil
		}
	}

	geminiClient := ai.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, log.With("component", "gemini"))

	publisher := notify.NewClaimPublisher(cfg.KafkaBrokers, cfg.ClaimsTopic, log.With("component", "notify"))
	defer publisher.Close()

	deps := pipeline.RunnerDeps{
		Sources: []sources.Source{
			sources.NewNewsAPI(cfg.NewsAPIKey, log.With("source", "newsapi")),
			sources.NewXSearch(cfg.XBearerToken, log.With("source", "x")),
			sources.NewReddit(cfg.Subreddits, log.With("source", "reddit")),
		},
		Relevance: ai.NewRelevanceChecker(geminiClient, log.With("component", "relevance")),
		Scorer:    ai.NewScorer(geminiClient, log.With("component", "scorer")),
		Cache:     dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL),
		Logger:    log.With("component", "pipeline"),
	}
	if esClient != nil {
		deps.Store = esClient
	}
	if publisher != nil {
		deps.Publisher = publisher
	}

	srv := &server{log: log, cfg: cfg, runner: pipeline.NewRunner(deps)}
	if esClient != nil {
		srv.store = esClient
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/api/cron/fetch", srv.handleCronFetch)
	r.Post("/api/fetch-now", srv.handleFetchNow)
	r.Get("/api/claims", srv.handleClaims)
	r.Get("/api/logs", srv.handleLogs)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A manual fetch cycle can take minutes when every item goes
		// through scoring.
		WriteTimeout: 5 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type cycleRunner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

type feedStore interface {
	SearchClaims(ctx context.Context, params elasticsearch.ClaimSearchParams) (*elasticsearch.ClaimSearchResult, error)
	RecentRunLogs(ctx context.Context, size int) ([]models.RunLog, error)
	Health(ctx context.Context) error
}

type server struct {
	log    *slog.Logger
	cfg    *config.API
	runner cycleRunner
	store  feedStore
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

type triggerResponse struct {
	Success   bool     `json:"success"`
	Fetched   int      `json:"fetched"`
	Processed int      `json:"processed"`
	Duration  int64    `json:"duration"`
	Errors    []string `json:"errors,omitempty"`
	Message   string   `json:"message,omitempty"`
}

type fatalResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	Fetched   int    `json:"fetched"`
	Processed int    `json:"processed"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCronFetch is the scheduled trigger. It requires the shared
// secret; the scheduler is the only caller that should know it.
func (s *server) handleCronFetch(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}

	s.runCycle(w, r)
}

// handleFetchNow is the manual trigger, intentionally unauthenticated.
func (s *server) handleFetchNow(w http.ResponseWriter, r *http.Request) {
	s.runCycle(w, r)
}

func (s *server) runCycle(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrStoreUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Error:   "Claims store not configured",
				Message: "Set ELASTICSEARCH_ADDR to enable data fetching.",
			})
			return
		}

		s.log.Error("fetch cycle failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, fatalResponse{
			Error:     "Fatal error",
			Details:   err.Error(),
			Fetched:   summary.Fetched,
			Processed: summary.Processed,
		})
		return
	}

	writeJSON(w, http.StatusOK, triggerResponse{
		Success:   true,
		Fetched:   summary.Fetched,
		Processed: summary.Processed,
		Duration:  summary.DurationMs,
		Errors:    summary.Errors,
		Message:   summary.Message,
	})
}

func (s *server) handleClaims(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := elasticsearch.ClaimSearchParams{
		MinScore: clampInt(r.URL.Query().Get("min_score"), 0, 10),
		Source:   strings.TrimSpace(r.URL.Query().Get("source")),
		Size:     clampInt(r.URL.Query().Get("limit"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:     strings.TrimSpace(r.URL.Query().Get("sort")),
	}

	result, err := s.store.SearchClaims(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	size := clampInt(r.URL.Query().Get("limit"), s.cfg.DefaultPage, s.cfg.MaxPage)
	logs, err := s.store.RecentRunLogs(ctx, size)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *server) authorized(r *http.Request) bool {
	if s.cfg.CronSecret == "" {
		return false
	}
	authHeader := r.Header.Get("Authorization")
	expected := "Bearer " + s.cfg.CronSecret
	return subtle.ConstantTimeCompare([]byte(authHeader), []byte(expected)) == 1
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
