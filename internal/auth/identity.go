package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jobtracker/internal/model"
	"github.com/hitoshi/jobtracker/internal/repository"
)

// Profile はIdPから取得したユーザープロフィールを表す。
type Profile struct {
	Provider    model.Provider
	ID          string // プロバイダー固有のid（存在する場合）
	Sub         string // OIDCのsubクレーム
	Email       string // プライマリメールアドレス
	DisplayName string
	PhotoURL    string
}

// StableID はid, sub, emailの順で最初に空でない値をユーザーIDとして返す。
func (p *Profile) StableID() (string, error) {
	for _, candidate := range []string{p.ID, p.Sub, p.Email} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v, nil
		}
	}
	return "", model.ErrNoUsableIdentifier
}

// IdentityResolver はIdPプロフィールを安定したユーザーIDに解決し、Userレコードを作成・更新する。
type IdentityResolver struct {
	users repository.UserRepository
	now   func() time.Time
}

// NewIdentityResolver はIdentityResolverを生成する。
func NewIdentityResolver(users repository.UserRepository) *IdentityResolver {
	return &IdentityResolver{users: users, now: time.Now}
}

// Resolve はプロフィールからユーザーを解決する。
// 初回サインインではUserを作成し、2回目以降はdisplayName, photoUrl, updatedAtのみ更新する。
// 識別子が得られない場合は*model.IdentityErrorを返す。
func (r *IdentityResolver) Resolve(ctx context.Context, profile *Profile) (*model.User, error) {
	id, err := profile.StableID()
	if err != nil {
		return nil, &model.IdentityError{Provider: profile.Provider, Err: err}
	}

	existing, err := r.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := r.now().UTC()

	if existing == nil {
		user := &model.User{
			ID:          id,
			DisplayName: profile.DisplayName,
			Email:       profile.Email,
			Provider:    profile.Provider,
			PhotoURL:    profile.PhotoURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := r.users.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("new user created",
			slog.String("user_id", id),
			slog.String("provider", string(profile.Provider)),
		)
		return user, nil
	}

	if profile.DisplayName != "" {
		existing.DisplayName = profile.DisplayName
	}
	existing.PhotoURL = profile.PhotoURL
	existing.UpdatedAt = now

	if err := r.users.Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	slog.Info("existing user logged in",
		slog.String("user_id", id),
		slog.String("provider", string(existing.Provider)),
	)
	return existing, nil
}
