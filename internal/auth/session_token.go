package auth

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/jobtracker/internal/model"
)

const tokenIssuer = "jobtracker"

// ErrInvalidSession はmodel.ErrInvalidSessionの別名。
var ErrInvalidSession = model.ErrInvalidSession

// SessionClaims はセッションCookieに格納するJWTのクレーム。
// jtiにセッションID、subにユーザーIDを持つ。
type SessionClaims struct {
	jwtlib.RegisteredClaims
}

// SessionID はセッションIDを返す。
func (c *SessionClaims) SessionID() string { return c.ID }

// UserID はユーザーIDを返す。
func (c *SessionClaims) UserID() string { return c.Subject }

// TokenSigner はセッションCookie用のHS256トークンを発行・検証する。
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

// NewTokenSigner はSESSION_SECRETで署名するTokenSignerを生成する。
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), now: time.Now}
}

// Sign はセッションから署名済みトークンを生成する。
func (s *TokenSigner) Sign(session *model.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   session.UserID,
			ID:        session.ID,
			IssuedAt:  jwtlib.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwtlib.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse はトークンの署名・発行者・有効期限を検証してクレームを返す。
func (s *TokenSigner) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
