// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtracker/internal/middleware"
	"github.com/hitoshi/jobtracker/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// auth.Serviceが実装する。
type AuthServiceInterface interface {
	HasProvider(provider model.Provider) bool
	GetLoginURL(provider model.Provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider model.Provider, code string) (*model.Session, string, error)
	ResolveSession(ctx context.Context, token string) (*model.Session, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontendURL   string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はプロバイダーのOAuthフローを開始する。
// GET /auth/{provider}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))
	if !h.service.HasProvider(provider) {
		middleware.WriteAPIError(w, model.NewUnknownProviderError(string(provider)))
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(provider, state)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setCookie(w, oauthStateCookie, state, oauthStateMaxAge)
	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
// 成功時はセッションCookieを設定してフロントエンドへ、失敗時はログイン画面へリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))
	if !h.service.HasProvider(provider) {
		middleware.WriteAPIError(w, model.NewUnknownProviderError(string(provider)))
		return
	}

	query := r.URL.Query()
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	h.setCookie(w, oauthStateCookie, "", -1)

	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.String("provider", string(provider)))
		h.redirectLoginFailure(w, r, provider)
		return
	}

	if idpErr := query.Get("error"); idpErr != "" {
		slog.Warn("identity provider returned error",
			slog.String("provider", string(provider)),
			slog.String("error", idpErr),
		)
		h.redirectLoginFailure(w, r, provider)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.redirectLoginFailure(w, r, provider)
		return
	}

	_, token, err := h.service.HandleCallback(r.Context(), provider, code)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		h.redirectLoginFailure(w, r, provider)
		return
	}

	h.setCookie(w, middleware.SessionCookieName, token, h.config.SessionMaxAge)
	http.Redirect(w, r, h.config.FrontendURL, http.StatusTemporaryRedirect)
}

// Check は現在のセッションのユーザー情報を返す。
// GET /auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	session, err := h.service.ResolveSession(r.Context(), cookie.Value)
	if err != nil {
		middleware.WriteSessionError(w, r, err)
		return
	}
	if session == nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, session.User)
}

// Logout はセッションを破棄する。セッションがなくても成功を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// LogoutRedirect はセッションを破棄してフロントエンドへリダイレクトする。
// GET /logout
func (h *AuthHandler) LogoutRedirect(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	http.Redirect(w, r, h.config.FrontendURL, http.StatusFound)
}

// endSession はCookieのセッションを失効させ、Cookieを削除する。失効の失敗はログのみ。
func (h *AuthHandler) endSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}
	h.setCookie(w, middleware.SessionCookieName, "", -1)
}

func (h *AuthHandler) redirectLoginFailure(w http.ResponseWriter, r *http.Request, provider model.Provider) {
	q := url.Values{}
	q.Set("error", string(provider)+"-auth-failed")
	http.Redirect(w, r, h.config.FrontendURL+"/login?"+q.Encode(), http.StatusTemporaryRedirect)
}

// setCookie はHTTP OnlyのCookieを設定する。maxAgeが負の場合は削除する。
func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
