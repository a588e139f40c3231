package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Submitter is the publishing side of the gateway.
type Submitter interface {
	Submit(ctx context.Context, rec domain.Record) domain.Outcome
	SubmitAll(ctx context.Context, recs []domain.Record) []domain.Outcome
}

type Handler struct {
	logger    *slog.Logger
	submitter Submitter
	maxBatch  int
}

func NewHandler(logger *slog.Logger, submitter Submitter, maxBatch int) *Handler {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &Handler{logger: logger, submitter: submitter, maxBatch: maxBatch}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ready") })

	r.Route("/v1/records", func(r chi.Router) {
		r.Post("/", handler.submitRecord)
		r.Post("/batch", handler.submitBatch)
	})
	return r
}
