package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/SamuelRCrider/dqe-go/core"
	"github.com/SamuelRCrider/dqe-go/store"
)

// maxBatchRecords bounds a single POST /v1/batches body
const maxBatchRecords = 10000

// Engine is the validation surface the HTTP layer needs
type Engine interface {
	ValidateRecord(ctx context.Context, record core.Record, priorRecords []core.Record) core.RecordResult
	RunBatch(ctx context.Context, records []core.Record) (*core.BatchResult, error)
}

// IssueReader reads persisted issues back by job
type IssueReader interface {
	ListIssues(ctx context.Context, jobID string) ([]store.IssueRecord, error)
}

// ValidateRequest is the body of POST /v1/records/validate
type ValidateRequest struct {
	Record       core.Record   `json:"record"`
	PriorRecords []core.Record `json:"priorRecords"`
}

// BatchRequest is the body of POST /v1/batches
type BatchRequest struct {
	Records []core.Record `json:"records"`
}

// ValidationHandler serves record and batch validation
type ValidationHandler struct {
	engine Engine
	issues IssueReader
	logger *slog.Logger
}

// NewValidationHandler creates a handler; issues may be nil when nothing is persisted
func NewValidationHandler(engine Engine, issues IssueReader, logger *slog.Logger) *ValidationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidationHandler{engine: engine, issues: issues, logger: logger}
}

// ValidateRecord assesses one record against the supplied prior records
func (h *ValidationHandler) ValidateRecord(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err.Error()))
		return
	}
	if req.Record.RecordID == "" && len(req.Record.Fields) == 0 {
		writeError(w, r, http.StatusBadRequest, "record is required")
		return
	}

	result := h.engine.ValidateRecord(r.Context(), req.Record, req.PriorRecords)
	render.JSON(w, r, SuccessResponse("ok", result))
}

// RunBatch validates a batch synchronously and returns the full result
func (h *ValidationHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err.Error()))
		return
	}
	if len(req.Records) > maxBatchRecords {
		writeError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d records exceeds the limit of %d", len(req.Records), maxBatchRecords))
		return
	}

	result, err := h.engine.RunBatch(r.Context(), req.Records)
	if err != nil {
		if errors.Is(err, core.ErrBatchCanceled) {
			processed := 0
			if result != nil {
				processed = len(result.Results)
			}
			h.logger.Warn("batch canceled by client", "processed", processed, "total", len(req.Records))
			writeError(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("batch failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	render.JSON(w, r, SuccessResponse("ok", result))
}

// ListIssues returns the persisted issues of a job
func (h *ValidationHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	if h.issues == nil {
		writeError(w, r, http.StatusNotFound, "issue persistence is not configured")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "job id is required")
		return
	}

	issues, err := h.issues.ListIssues(r.Context(), jobID)
	if err != nil {
		h.logger.Error("failed to list issues", "job_id", jobID, "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	render.JSON(w, r, SuccessResponse("ok", issues))
}
