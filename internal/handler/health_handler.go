package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nufounders/nufounders/internal/repository"
)

// NewHealthHandler はDB疎通を含むヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(health repository.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		if err := pingDatabase(r.Context(), health); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
