package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/assessor/internal/apperr"
	"github.com/pavelanni/assessor/internal/i18n"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Kind    apperr.Kind `json:"kind"`
	Details string      `json:"details,omitempty"`
}

var errorTitles = map[apperr.Kind]string{
	apperr.KindInvalidRequest: "ErrorInvalidRequest",
	apperr.KindNotFound:       "ErrorNotFound",
	apperr.KindProvider:       "ErrorProvider",
	apperr.KindExtraction:     "ErrorExtraction",
	apperr.KindGeneration:     "ErrorGeneration",
	apperr.KindEvaluation:     "ErrorEvaluation",
	apperr.KindInternal:       "ErrorInternal",
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidRequest:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindProvider, apperr.KindExtraction, apperr.KindGeneration, apperr.KindEvaluation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	resp := ErrorResponse{
		Error: i18n.T(r.Context(), errorTitles[kind]),
		Kind:  kind,
	}
	switch kind {
	case apperr.KindInternal:
	case apperr.KindInvalidRequest:
		resp.Details = err.Error()
	default:
		resp.Details = apperr.Message(err)
	}

	log := h.log.With("method", r.Method, "path", r.URL.Path, "status", status,
		"request_id", middleware.GetReqID(r.Context()))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Info("request rejected", "kind", kind, "error", err)
	}
	writeJSON(w, status, resp)
}
