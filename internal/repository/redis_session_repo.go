package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/hitoshi/jobtracker/internal/model"
)

// redisSession はRedisに保存するセッションのJSON表現。
type redisSession struct {
	UserID    string            `json:"userId"`
	User      model.SessionUser `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
	CreatedAt time.Time         `json:"createdAt"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// キーにTTLを設定するため、期限切れセッションはRedis側で自動的に消える。
type RedisSessionRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client *redis.Client, prefix string) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, prefix: prefix + "session:"}
}

// Create はセッションを有効期限付きで作成する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	body, err := json.Marshal(redisSession{
		UserID:    session.UserID,
		User:      session.User,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+session.ID, body, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	body, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(body, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	session := &model.Session{
		ID:        id,
		UserID:    rs.UserID,
		User:      rs.User,
		ExpiresAt: rs.ExpiresAt,
		CreatedAt: rs.CreatedAt,
	}
	if session.Expired(time.Now()) {
		return nil, nil
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はTTLで失効するため何もしない。
func (r *RedisSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
