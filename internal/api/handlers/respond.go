package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

// DegradedHeader lists the strategies that failed while the request still succeeded.
const DegradedHeader = "X-Search-Degraded"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithServiceError maps the service error taxonomy onto HTTP. outage is the
// empty page sent alongside a 503; it may be nil.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, outage interface{}) {
	var appErr *apperrors.AppError
	message := "internal server error"
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, message)
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, message)
	case apperrors.ErrorTypeUnavailable:
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("search upstream unavailable")
		if outage == nil {
			respondWithError(w, http.StatusServiceUnavailable, message)
			return
		}
		respondWithJSON(w, http.StatusServiceUnavailable, outage)
	default:
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("search failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// reviewOutage is the 503 body of review search: the empty result plus the error.
type reviewOutage struct {
	*entities.ReviewSearchResult
	Error string `json:"error"`
}

// productOutage is the 503 body of product search: the empty page plus the error.
type productOutage struct {
	*entities.ProductPage
	Error string `json:"error"`
}

func markDegraded(w http.ResponseWriter, strategies []entities.Strategy) {
	if len(strategies) == 0 {
		return
	}
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	w.Header().Set(DegradedHeader, strings.Join(names, ","))
}

// queryInt parses an optional integer parameter; absent means 0.
func queryInt(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationErrorf("%s must be an integer", name)
	}
	return n, nil
}

// queryFloat parses an optional float parameter; absent means nil.
func queryFloat(values url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.NewValidationErrorf("%s must be a number", name)
	}
	return &f, nil
}

// queryList accepts both repeated parameters and comma separated values.
func queryList(values url.Values, name string) []string {
	var out []string
	for _, v := range values[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
