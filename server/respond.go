package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"predictionarena/service"

	log "github.com/sirupsen/logrus"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeClientError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors to HTTP statuses. Unrecognized errors are
// logged and rendered as an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
		writeClientError(w, status, "internal error")
		return
	}
	writeClientError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrMarketNotFound),
		errors.Is(err, service.ErrWagerNotFound),
		errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusPaymentRequired

	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrAboveMaximum),
		errors.Is(err, service.ErrUntrustedSource):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrMarketNotOpen),
		errors.Is(err, service.ErrMarketNotDue),
		errors.Is(err, service.ErrMarketAlreadyResolving),
		errors.Is(err, service.ErrMarketAlreadyResolved),
		errors.Is(err, service.ErrDuplicatePosition),
		errors.Is(err, service.ErrNotAWinner),
		errors.Is(err, service.ErrAlreadyClaimed):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
