package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"placement_workflow/internal/app"

	"github.com/sirupsen/logrus"
)

// Meta is the pagination block of list responses.
type Meta struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func buildMeta(total, page, pageSize int, hasNext, hasPrev bool) *Meta {
	totalPages := 0
	if total > 0 && pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &Meta{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    hasNext,
		HasPrev:    hasPrev,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writePage(w http.ResponseWriter, data any, meta *Meta) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Meta: meta})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, app.ErrMissingRejectionReason), errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Storage details stay in the log.
func writeError(w http.ResponseWriter, logger *logrus.Entry, err error) {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		logger.WithError(err).Error("Storage unavailable")
		message = "storage unavailable, please retry"
	case http.StatusInternalServerError:
		logger.WithError(err).Error("Unexpected error")
		message = "internal error"
	}
	writeFail(w, status, message)
}
