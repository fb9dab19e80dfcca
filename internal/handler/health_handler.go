package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker はバックエンドの疎通確認を行う。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthHandler はGET /healthのハンドラーを返す。
// checkerがnilの場合は常にokを返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Timestamp: now})
				return
			}
		}

		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: now})
	}
}

// Root はAPIの簡易バナーを返す。
// GET /
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Job Tracker API\n"))
}
