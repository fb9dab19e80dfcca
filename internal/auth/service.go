// Package auth はOAuth認証フロー、ID解決、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobtracker/internal/model"
	"github.com/hitoshi/jobtracker/internal/repository"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名を返す。
	Name() model.Provider
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*Profile, error)
}

// LoginObserver はログイン結果を受け取る。metrics.Collector が実装する。
type LoginObserver interface {
	ObserveLogin(provider string, success bool)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	providers   map[model.Provider]OAuthProvider
	resolver    *IdentityResolver
	sessionRepo repository.SessionRepository
	tokens      *TokenSigner
	observer    LoginObserver
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。observerはnilでもよい。
func NewService(
	providers []OAuthProvider,
	resolver *IdentityResolver,
	sessionRepo repository.SessionRepository,
	tokens *TokenSigner,
	observer LoginObserver,
	config ServiceConfig,
) *Service {
	byName := make(map[model.Provider]OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		providers:   byName,
		resolver:    resolver,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		observer:    observer,
		config:      config,
		now:         time.Now,
	}
}

// HasProvider はプロバイダーが設定済みかを返す。
func (s *Service) HasProvider(provider model.Provider) bool {
	_, ok := s.providers[provider]
	return ok
}

// GetLoginURL は指定プロバイダーのOAuth認証URLを生成する。
func (s *Service) GetLoginURL(provider model.Provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", model.NewUnknownProviderError(string(provider))
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションと署名済みセッショントークンを返す。
// IdPとのやり取りやID解決の失敗は*model.IdentityErrorとして返す。
func (s *Service) HandleCallback(ctx context.Context, provider model.Provider, code string) (*model.Session, string, error) {
	session, token, err := s.handleCallback(ctx, provider, code)
	if s.observer != nil && s.HasProvider(provider) {
		s.observer.ObserveLogin(string(provider), err == nil)
	}
	return session, token, err
}

func (s *Service) handleCallback(ctx context.Context, provider model.Provider, code string) (*model.Session, string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, "", model.NewUnknownProviderError(string(provider))
	}

	profile, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", &model.IdentityError{Provider: provider, Err: err}
	}

	user, err := s.resolver.Resolve(ctx, profile)
	if err != nil {
		return nil, "", err
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.Sign(session)
	if err != nil {
		return nil, "", err
	}

	return session, token, nil
}

// ResolveSession はセッショントークンを検証し、有効なセッションを返す。
// 無効・期限切れ・失効済みの場合はErrInvalidSessionを返す。
// セッションストアの障害は*model.StorageErrorとして返す。
func (s *Service) ResolveSession(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindByID(ctx, claims.SessionID())
	if err != nil {
		return nil, model.NewStorageError("find_session", err)
	}
	if session == nil || session.UserID != claims.UserID() {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// Logout はトークンが指すセッションを破棄する。
// トークンが無効な場合は破棄対象がないため何もしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if errors.Is(err, ErrInvalidSession) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteByID(ctx, claims.SessionID()); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", claims.UserID()))
	return nil
}

// createSession はユーザーの射影を持つセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		User:      user.Projection(),
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
