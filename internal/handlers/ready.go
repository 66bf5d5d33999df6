package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"genkey/internal/logger"
	"genkey/internal/version"
	"genkey/middleware"
)

// Status answers the plain-text liveness probe used by existing clients.
func Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger.HTTPEvent(r.Method, r.URL.Path, http.StatusOK, 0).
		Str("request_id", requestID).
		Msg("readiness check")
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// GetVersion returns the build information.
func GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, version.Info())
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.HTTPError(r.Method, r.URL.Path, status, err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("failed to encode response")
	}
}
