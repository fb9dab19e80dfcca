package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/jobtracker/internal/model"
)

// RecordUserRepo はRecordStore上にユーザーをドキュメントとして保存するリポジトリ。
// ユーザーIDをそのままキーとして使う。
type RecordUserRepo struct {
	store RecordStore
}

// NewRecordUserRepo はRecordUserRepoを生成する。
func NewRecordUserRepo(store RecordStore) *RecordUserRepo {
	return &RecordUserRepo{store: store}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *RecordUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	rec, err := r.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user record: %w", err)
	}
	user := &model.User{}
	if err := json.Unmarshal(body, user); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}
	return user, nil
}

// Save はユーザーを作成または更新する。
func (r *RecordUserRepo) Save(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	body, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return fmt.Errorf("failed to convert user to record: %w", err)
	}

	if err := r.store.Put(ctx, user.ID, rec); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*RecordUserRepo)(nil)
