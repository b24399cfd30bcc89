package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/kjannette/mtf-backend/internal/calc"
	"github.com/kjannette/mtf-backend/internal/external"
	"github.com/kjannette/mtf-backend/internal/ledger"
	"github.com/kjannette/mtf-backend/internal/repository"
	"github.com/kjannette/mtf-backend/internal/service"
)

const (
	maxQueryLimit = 1000
	maxBodyBytes  = 1 << 20

	// retryAfterSeconds is suggested to clients when market data is unavailable.
	retryAfterSeconds = 60
)

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// --- validation helpers ---

func validateDate(date string) bool {
	if !dateRegexp.MatchString(date) {
		return false
	}
	_, err := calc.ParseDate(date)
	return err == nil
}

// parseDateField parses an optional YYYY-MM-DD value named field.
func parseDateField(field string, v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	if !validateDate(*v) {
		return nil, &calc.ValidationError{Field: field, Message: "expected YYYY-MM-DD"}
	}
	d, _ := calc.ParseDate(*v)
	return &d, nil
}

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &calc.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &calc.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type errorBody struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Field      string `json:"field,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *calc.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Code: "validation_failed", Field: ve.Field})
	case errors.Is(err, ledger.ErrInsufficientBudget):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "insufficient_budget"})
	case errors.Is(err, ledger.ErrTradeLimitReached):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "trade_limit_reached"})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, service.ErrTradeClosed):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "trade_closed"})
	case errors.Is(err, repository.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "budget changed concurrently, retry", Code: "conflict"})
	case errors.Is(err, external.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "market data rate limited", Code: "rate_limited", RetryAfter: retryAfterSeconds})
	case errors.Is(err, external.ErrPriceUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "price_unavailable", RetryAfter: retryAfterSeconds})
	default:
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s %s", verb(r.Method), r.URL.Path))
	}
}

func verb(method string) string {
	switch method {
	case http.MethodGet:
		return "fetch"
	case http.MethodDelete:
		return "delete"
	}
	return "update"
}
