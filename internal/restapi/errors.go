package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/feed"
	"buswisely.org/internal/logging"
	"buswisely.org/internal/models"
)

// invalidAPIKeyResponse sends a 401 Unauthorized response
func (api *RestAPI) invalidAPIKeyResponse(w http.ResponseWriter, r *http.Request) {
	response := models.ResponseModel{
		Code:        http.StatusUnauthorized,
		CurrentTime: models.ResponseCurrentTime(api.Clock),
		Text:        "permission denied",
		Version:     models.ResponseVersion,
	}

	setJSONResponseType(&w)
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.Logger.Error("failed to encode invalid API key response", "error", err)
	}
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.Logger, "internal server error", err,
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())))

	response := models.ResponseModel{
		Code:        http.StatusInternalServerError,
		CurrentTime: models.ResponseCurrentTime(api.Clock),
		Text:        "internal server error",
		Version:     models.ResponseVersion,
	}

	setJSONResponseType(&w)
	w.WriteHeader(http.StatusInternalServerError)
	if encoderErr := json.NewEncoder(w).Encode(response); encoderErr != nil {
		api.Logger.Error("failed to encode server error response", "error", encoderErr)
	}
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	response := struct {
		Code        int                 `json:"code"`
		CurrentTime int64               `json:"currentTime"`
		Text        string              `json:"text"`
		Version     int                 `json:"version"`
		FieldErrors map[string][]string `json:"fieldErrors"`
	}{
		Code:        http.StatusBadRequest,
		CurrentTime: models.ResponseCurrentTime(api.Clock),
		Text:        "invalid request",
		Version:     models.ResponseVersion,
		FieldErrors: fieldErrors,
	}

	setJSONResponseType(&w)
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.Logger.Error("failed to encode validation error response", "error", err)
	}
}

// handleServiceError maps service errors to responses: validation problems
// are 400, an unusable upstream feed is 503 and anything else is 500. Feed
// failures are logged with the request id so a 503 seen by a client can be
// traced to the upstream outcome behind it.
func (api *RestAPI) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *arrivals.ValidationError
	var upstreamErr *feed.UpstreamError
	var decodeErr *feed.DecodeError

	switch {
	case errors.As(err, &validationErr):
		api.validationErrorResponse(w, r, validationErr.FieldErrors())
	case errors.As(err, &upstreamErr):
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing useful to send.
			return
		}
		api.feedFailureLogger(r).Warn("realtime feed unavailable",
			slog.String("error", err.Error()),
			slog.Int("upstream_status", upstreamErr.Status),
			slog.Bool("timeout", upstreamErr.Timeout()))
		api.sendError(w, r, http.StatusServiceUnavailable, "realtime feed unavailable")
	case errors.As(err, &decodeErr):
		api.feedFailureLogger(r).Warn("realtime feed undecodable",
			slog.String("error", err.Error()),
			slog.String("component", "feed_decoder"))
		api.sendError(w, r, http.StatusServiceUnavailable, "realtime feed unavailable")
	default:
		api.serverErrorResponse(w, r, err)
	}
}

func (api *RestAPI) feedFailureLogger(r *http.Request) *slog.Logger {
	logger := api.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("path", r.URL.Path))
}
