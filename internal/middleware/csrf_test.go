package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/jobtracker/internal/model"
)

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			mw := NewCSRFMiddleware(CSRFConfig{})

			handlerCalled := false
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/applications", nil))

			if !handlerCalled {
				t.Fatalf("handler should have been called for %s request", method)
			}
		})
	}
}

func TestCSRFMiddleware_StateChangingMethods_Validation(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"トークンなし", "", "", http.StatusForbidden},
		{"ヘッダーなし", "token-a", "", http.StatusForbidden},
		{"Cookieなし", "", "token-a", http.StatusForbidden},
		{"不一致", "token-a", "token-b", http.StatusForbidden},
		{"一致", "token-a", "token-a", http.StatusOK},
	}

	methods := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

	for _, method := range methods {
		for _, tt := range tests {
			t.Run(method+"/"+tt.name, func(t *testing.T) {
				mw := NewCSRFMiddleware(CSRFConfig{})
				handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))

				req := httptest.NewRequest(method, "/applications/abc", nil)
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
				}
				if tt.header != "" {
					req.Header.Set(csrfHeaderName, tt.header)
				}
				w := httptest.NewRecorder()

				handler.ServeHTTP(w, req)

				resp := w.Result()
				if resp.StatusCode != tt.wantStatus {
					t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
				}
				if tt.wantStatus != http.StatusForbidden {
					return
				}
				var body ErrorResponseBody
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Code != model.ErrCodeCSRFInvalid {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
				}
			})
		}
	}
}

func TestCSRFMiddleware_GETRequest_SetsCSRFCookie(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{
		CookieSecure: true,
		CookieDomain: "example.com",
	})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/applications", nil))

	csrfCookie := findCookie(w.Result(), csrfCookieName)
	if csrfCookie == nil {
		t.Fatal("expected CSRF cookie to be set on GET request")
	}
	if len(csrfCookie.Value) != 64 {
		t.Errorf("CSRF token length = %d, want 64 hex chars", len(csrfCookie.Value))
	}
	if csrfCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("CSRF cookie SameSite = %v, want %v", csrfCookie.SameSite, http.SameSiteLaxMode)
	}
	if csrfCookie.HttpOnly {
		t.Error("CSRF cookie should NOT be HttpOnly (frontend needs to read it)")
	}
	if !csrfCookie.Secure {
		t.Error("CSRF cookie should be Secure when configured")
	}
	if csrfCookie.Path != "/" {
		t.Errorf("CSRF cookie Path = %q, want %q", csrfCookie.Path, "/")
	}
}

func TestCSRFMiddleware_GETRequest_ExistingCookie_DoesNotReplace(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/applications", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if findCookie(w.Result(), csrfCookieName) != nil {
		t.Error("CSRF cookie should not be re-set when already present")
	}
}

// --- CSRFトークン取得エンドポイントのテスト ---

func TestCSRFTokenHandler_SetsTokenCookieAndReturnsJSON(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Fatal("expected non-empty token in response")
	}

	csrfCookie := findCookie(resp, csrfCookieName)
	if csrfCookie == nil {
		t.Fatal("expected CSRF cookie to be set")
	}
	if csrfCookie.Value != body.Token {
		t.Errorf("cookie token %q != response token %q", csrfCookie.Value, body.Token)
	}
}

func TestCSRFTokenHandler_ExistingCookie_ReturnsSameToken(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token != "existing-token" {
		t.Errorf("token = %q, want %q", body.Token, "existing-token")
	}
	if findCookie(w.Result(), csrfCookieName) != nil {
		t.Error("existing CSRF cookie should not be replaced")
	}
}

func TestGenerateCSRFToken_Unique(t *testing.T) {
	a, err := generateCSRFToken()
	if err != nil {
		t.Fatalf("generateCSRFToken: %v", err)
	}
	b, err := generateCSRFToken()
	if err != nil {
		t.Fatalf("generateCSRFToken: %v", err)
	}
	if a == b {
		t.Error("tokens should differ")
	}
}
