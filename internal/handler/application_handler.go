package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtracker/internal/middleware"
	"github.com/hitoshi/jobtracker/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// ApplicationServiceInterface は応募記録ハンドラーが必要とするサービスインターフェース。
// application.Serviceが実装する。
type ApplicationServiceInterface interface {
	List(ctx context.Context, callerID string) ([]*model.Application, error)
	Create(ctx context.Context, callerID string, fields model.Fields) (*model.Application, error)
	Get(ctx context.Context, callerID, id string) (*model.Application, error)
	Update(ctx context.Context, callerID, id string, fields model.Fields) (*model.Application, error)
	Delete(ctx context.Context, callerID, id string) (*model.Application, error)
}

// ApplicationHandler は応募記録のHTTPハンドラー。
type ApplicationHandler struct {
	service ApplicationServiceInterface
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// archivedResponse は削除時のレスポンス。
type archivedResponse struct {
	Archived *model.Application `json:"archived"`
}

// List は呼び出し元の応募記録一覧を返す。
// GET /applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	apps, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apps)
}

// Create は応募記録を作成する。
// POST /applications
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	fields, err := decodeFields(w, r)
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError(err.Error()))
		return
	}

	app, err := h.service.Create(r.Context(), userID, fields)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, app)
}

// Get は応募記録を1件返す。
// GET /applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	app, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// Update は応募記録にフィールドをマージする。
// PUT /applications/{id}
func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	fields, err := decodeFields(w, r)
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError(err.Error()))
		return
	}

	app, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), fields)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// Delete は応募記録を削除し、削除前のスナップショットを返す。
// DELETE /applications/{id}
func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	app, err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, archivedResponse{Archived: app})
}

// callerID はセッションミドルウェアが注入したユーザーIDを返す。
// 取得できない場合は401を書き込みfalseを返す。
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

var errNotAnObject = errors.New("body must be a JSON object")

// decodeFields はリクエストボディをJSONオブジェクトとして読み取る。
// 空のボディは空のオブジェクトとして扱う。
func decodeFields(w http.ResponseWriter, r *http.Request) (model.Fields, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	var body any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Fields{}, nil
		}
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON object")
	}

	obj, ok := body.(map[string]any)
	if !ok {
		return nil, errNotAnObject
	}
	return model.Fields(obj), nil
}
