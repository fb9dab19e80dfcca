package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobtracker/internal/middleware"
	"github.com/hitoshi/jobtracker/internal/model"
)

// writeJSON は指定ステータスでJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// ストア障害は詳細をログにのみ残し、クライアントには汎用メッセージを返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	var storageErr *model.StorageError
	if errors.As(err, &storageErr) {
		slog.Error("storage error",
			slog.String("op", storageErr.Op),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", storageErr.Err.Error()),
		)
		middleware.WriteAPIError(w, model.NewStorageAPIError())
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
