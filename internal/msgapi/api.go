// Package msgapi exposes the prioritization service over HTTP.
package msgapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/sift/internal/message"
	"github.com/linnemanlabs/sift/internal/prioritize"
)

// PrioritizeService defines the business operations msgapi needs.
type PrioritizeService interface {
	Submit(ctx context.Context, records []message.Record) (*prioritize.SubmitResult, error)
	Get(ctx context.Context, id string) (*prioritize.ScoredMessage, bool, error)
	List(ctx context.Context, f prioritize.ListFilter) ([]*prioritize.ScoredMessage, error)
	Stats(ctx context.Context) (*prioritize.InboxStats, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    PrioritizeService
}

// New creates a new API handler.
func New(logger log.Logger, svc PrioritizeService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("prioritize service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", a.handleSubmitMessages)
		r.Get("/messages/{id}", a.handleGetMessage)
		r.Get("/inbox", a.handleListInbox)
		r.Get("/inbox/stats", a.handleInboxStats)
	})
}

func (a *API) handleSubmitMessages(w http.ResponseWriter, r *http.Request) {
	var batch message.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("sift.submit.size", len(batch.Messages)))

	result, err := a.svc.Submit(r.Context(), batch.Messages)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to submit messages", "count", len(batch.Messages))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Int("sift.submit.accepted", len(result.Accepted)))

	accepted := result.Accepted
	if accepted == nil {
		accepted = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accepted": accepted,
		"skipped":  result.Skipped,
	})
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sift.message.id", id))

	sm, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get scored message", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("sift.message.status", string(sm.Status)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sm)
}

func (a *API) handleListInbox(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	messages, err := a.svc.List(r.Context(), f)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list inbox")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*prioritize.ScoredMessage{}
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("sift.inbox.count", len(messages)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"messages": messages,
		"count":    len(messages),
	})
}

func (a *API) handleInboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Stats(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get inbox stats")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// filterFromQuery parses inbox list filters from query parameters.
func filterFromQuery(r *http.Request) (prioritize.ListFilter, error) {
	var f prioritize.ListFilter

	if c := r.URL.Query().Get("category"); c != "" {
		cat := prioritize.Category(c)
		if !cat.Valid() {
			return f, xerrors.New("invalid category")
		}
		f.Category = cat
	}

	if ms := r.URL.Query().Get("min_score"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n < 0 || n > 100 {
			return f, xerrors.New("invalid min_score")
		}
		f.MinScore = n
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return f, xerrors.New("invalid limit")
		}
		f.Limit = n
	}

	return f, nil
}
