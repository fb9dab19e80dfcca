// Package model はドメインモデルを定義する。
package model

import "time"

// Provider は外部IdPの種別を表す。
type Provider string

const (
	// ProviderGoogle はGoogle OAuthを表す。
	ProviderGoogle Provider = "google"
	// ProviderMicrosoft はMicrosoft Entra ID (旧Azure AD) を表す。
	ProviderMicrosoft Provider = "microsoft"
)

// Valid はサポート対象のプロバイダーかどうかを返す。
func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderMicrosoft
}

// User はサービス利用ユーザーを表す。
// IDはIdPのプロフィールから導出され、作成後は変更されない。
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Provider    Provider  `json:"provider"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SessionUser はセッションに保存するユーザーの最小射影。
// GET /auth/check のレスポンスにもそのまま使われる。
type SessionUser struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Provider    Provider `json:"provider"`
	Email       string   `json:"email"`
	PhotoURL    string   `json:"photoUrl,omitempty"`
}

// Projection はセッションに格納するユーザー情報を返す。
func (u *User) Projection() SessionUser {
	return SessionUser{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Provider:    u.Provider,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
	}
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	User      SessionUser
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
