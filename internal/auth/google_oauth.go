package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/jobtracker/internal/model"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// HTTPClient はトークン/ユーザー情報エンドポイントの呼び出しに使う。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	return &GoogleOAuthProvider{config: config}
}

// Name はプロバイダー名を返す。
func (p *GoogleOAuthProvider) Name() model.Provider {
	return model.ProviderGoogle
}

// Endpoints はサーバー側から呼び出すエンドポイントURLを返す。
func (p *GoogleOAuthProvider) Endpoints() []string {
	return []string{p.config.TokenURL, p.config.UserInfoURL}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// スコープにはopenid, email, profileを含む。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
// v3はsub、v2互換レスポンスはidを返す。
type googleUserInfo struct {
	ID      string `json:"id"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、プロフィールを取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Profile, error) {
	tokenResp, err := exchangeToken(ctx, p.config.HTTPClient, p.config.TokenURL, url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	var info googleUserInfo
	if err := fetchUserInfo(ctx, p.config.HTTPClient, p.config.UserInfoURL, tokenResp.AccessToken, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &Profile{
		Provider:    model.ProviderGoogle,
		ID:          info.ID,
		Sub:         info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
