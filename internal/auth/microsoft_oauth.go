package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/jobtracker/internal/model"
)

const (
	microsoftLoginBaseURL       = "https://login.microsoftonline.com/"
	defaultMicrosoftTenant      = "common"
	defaultMicrosoftUserInfoURL = "https://graph.microsoft.com/oidc/userinfo"
)

// MicrosoftOAuthConfig はMicrosoft ID プラットフォーム(v2.0)の設定。
type MicrosoftOAuthConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string // 空の場合は"common"
	RedirectURL  string

	// HTTPClient はトークン/ユーザー情報エンドポイントの呼び出しに使う。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// MicrosoftOAuthProvider はMicrosoftアカウント（個人/職場）によるOIDC認証を提供する。
type MicrosoftOAuthProvider struct {
	config MicrosoftOAuthConfig
}

// NewMicrosoftOAuthProvider はMicrosoftOAuthProviderを生成する。
func NewMicrosoftOAuthProvider(config MicrosoftOAuthConfig) *MicrosoftOAuthProvider {
	if config.TenantID == "" {
		config.TenantID = defaultMicrosoftTenant
	}
	base := microsoftLoginBaseURL + url.PathEscape(config.TenantID) + "/oauth2/v2.0"
	if config.AuthURL == "" {
		config.AuthURL = base + "/authorize"
	}
	if config.TokenURL == "" {
		config.TokenURL = base + "/token"
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultMicrosoftUserInfoURL
	}
	return &MicrosoftOAuthProvider{config: config}
}

// Name はプロバイダー名を返す。
func (p *MicrosoftOAuthProvider) Name() model.Provider {
	return model.ProviderMicrosoft
}

// Endpoints はサーバー側から呼び出すエンドポイントURLを返す。
func (p *MicrosoftOAuthProvider) Endpoints() []string {
	return []string{p.config.TokenURL, p.config.UserInfoURL}
}

// GetLoginURL はMicrosoftの認証URLを生成する。
func (p *MicrosoftOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"response_mode": {"query"},
		"scope":         {"openid profile email"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// microsoftUserInfo はOIDCユーザー情報エンドポイントのレスポンス。
type microsoftUserInfo struct {
	Sub        string `json:"sub"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
	Picture    string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、プロフィールを取得する。
func (p *MicrosoftOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Profile, error) {
	tokenResp, err := exchangeToken(ctx, p.config.HTTPClient, p.config.TokenURL, url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
		"scope":         {"openid profile email"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	var info microsoftUserInfo
	if err := fetchUserInfo(ctx, p.config.HTTPClient, p.config.UserInfoURL, tokenResp.AccessToken, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	oid, err := microsoftObjectID(tokenResp.IDToken, info.Sub)
	if err != nil {
		return nil, err
	}

	name := info.Name
	if name == "" {
		name = strings.TrimSpace(info.GivenName + " " + info.FamilyName)
	}

	// Graphのpictureはアクセストークンが必要なURLのためブラウザ表示には使わない
	return &Profile{
		Provider:    model.ProviderMicrosoft,
		ID:          oid,
		Sub:         info.Sub,
		Email:       info.Email,
		DisplayName: name,
	}, nil
}

// microsoftObjectID はIDトークンのoidクレーム（テナント内で不変のオブジェクトID）を返す。
// IDトークンはトークンエンドポイントからTLSで直接受け取るため署名は検証しない。
// IDトークンがない場合やoidを含まない場合は空文字を返し、subでの識別にフォールバックする。
func microsoftObjectID(idToken, userInfoSub string) (string, error) {
	if idToken == "" {
		return "", nil
	}
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("failed to parse id token: %w", err)
	}
	if sub, _ := claims["sub"].(string); sub != "" && userInfoSub != "" && sub != userInfoSub {
		return "", fmt.Errorf("id token subject does not match user info")
	}
	oid, _ := claims["oid"].(string)
	return oid, nil
}

// compile-time interface check
var _ OAuthProvider = (*MicrosoftOAuthProvider)(nil)
