// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobtracker/internal/model"
)

// SessionCookieName はセッショントークン（署名済みJWT）を保持するCookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey  = contextKey("user_id")
	sessionContextKey = contextKey("session")
)

// SessionResolver はCookieのトークンからセッションを解決する。
// auth.Serviceが実装する。
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーIDとセッションをリクエストコンテキストに注入する。
// 未認証リクエストには401、セッションストアの障害には5xxを返し、後続のハンドラーは呼ばれない。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			session, err := resolver.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				WriteSessionError(w, r, err)
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			setLoggedUserID(r.Context(), session.UserID)

			ctx := ContextWithUserID(r.Context(), session.UserID)
			ctx = context.WithValue(ctx, sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteSessionError はセッション解決の失敗をレスポンスに変換する。
// model.ErrInvalidSessionのみ401とし、それ以外はストア障害として5xxを返す。
func WriteSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrInvalidSession) {
		slog.Debug("session rejected",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	slog.Error("failed to resolve session",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	var storageErr *model.StorageError
	if errors.As(err, &storageErr) {
		WriteAPIError(w, model.NewStorageAPIError())
		return
	}
	WriteInternalServerError(w)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// SessionFromContext はセッションミドルウェアが注入したセッションを返す。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*model.Session)
	return s, ok && s != nil
}
