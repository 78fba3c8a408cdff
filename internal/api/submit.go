package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"dispatchd/internal/dispatch"
)

const maxBodySize = 1 << 20 // 1 MB

// submitRequest is the JSON body for POST /v1/requests.
type submitRequest struct {
	RequestID string         `json:"request_id" validate:"required,min=1,max=255"`
	Payload   map[string]any `json:"payload" validate:"required"`
}

// submitResponse is the acceptance body.
type submitResponse struct {
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	WorkerID  int       `json:"worker_id"`
	CreatedAt time.Time `json:"created_at"`
}

// conflictResponse describes the already-admitted record, annotated with the
// tier that detected the duplicate.
type conflictResponse struct {
	Error     string    `json:"error"`
	RequestID string    `json:"request_id"`
	WorkerID  int       `json:"worker_id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "dispatch.submit")
	defer span.End()

	var req submitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request_id and payload are required")
		return
	}

	span.SetAttributes(attribute.String("dispatch.request_id", req.RequestID))

	rec, err := s.dispatcher.Submit(ctx, req.RequestID, req.Payload)

	var dup *dispatch.DuplicateError
	if errors.As(err, &dup) {
		span.SetAttributes(attribute.String("dispatch.duplicate_source", dup.Source))
		s.writeJSON(w, http.StatusConflict, conflictResponse{
			Error:     "request already processed or in progress",
			RequestID: dup.ID,
			WorkerID:  dup.WorkerID,
			CreatedAt: dup.CreatedAt,
			Source:    dup.Source,
		})
		return
	}
	if err != nil {
		s.logger.Error("submit request", "request_id", req.RequestID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to queue request")
		return
	}

	span.SetAttributes(attribute.Int("dispatch.worker_id", rec.WorkerID))
	s.writeJSON(w, http.StatusAccepted, submitResponse{
		Message:   "request queued for processing",
		RequestID: rec.ID,
		WorkerID:  rec.WorkerID,
		CreatedAt: rec.CreatedAt,
	})
}
