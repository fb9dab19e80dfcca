// Package application は応募記録の所有者スコープ付きCRUDを提供する。
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobtracker/internal/model"
	"github.com/hitoshi/jobtracker/internal/repository"
)

// FieldSanitizer はクライアントフィールドの文字列値を無害化する。
type FieldSanitizer interface {
	SanitizeFields(fields model.Fields) model.Fields
}

// Service は応募記録のサービス層。
// すべての操作は呼び出し元ユーザーIDをセキュリティコンテキストとして受け取り、
// 他ユーザーの記録は存在しないものとして扱う。
type Service struct {
	store     repository.RecordStore
	sanitizer FieldSanitizer
	now       func() time.Time
	newID     func() (string, error)
}

// NewService はServiceの新しいインスタンスを生成する。
// sanitizerがnilの場合はフィールドをそのまま保存する。
func NewService(store repository.RecordStore, sanitizer FieldSanitizer) *Service {
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		now:       time.Now,
		newID:     newApplicationID,
	}
}

// newApplicationID は時刻順のUUIDv7を生成する。
func newApplicationID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// List は呼び出し元ユーザーの応募記録一覧を返す。
// ストアが所有者インデックスを持つ場合はそれを使うが、結果は必ずuserIdで再確認する。
func (s *Service) List(ctx context.Context, callerID string) ([]*model.Application, error) {
	records, err := repository.ScanOwned(ctx, s.store, callerID)
	if err != nil {
		return nil, model.NewStorageError("list", err)
	}

	apps := make([]*model.Application, 0, len(records))
	for _, rec := range records {
		if !ownedBy(rec, callerID) {
			continue
		}
		app, err := model.ApplicationFromDocument(rec)
		if err != nil {
			slog.Warn("応募記録のデコードに失敗したためスキップします",
				slog.String("user_id", callerID),
				slog.Any("id", rec[model.FieldID]),
				slog.String("error", err.Error()),
			)
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Create は新しい応募記録を作成する。
// userIdは常に呼び出し元ユーザーIDとなり、クライアントが送信した予約フィールドは無視する。
func (s *Service) Create(ctx context.Context, callerID string, fields model.Fields) (*model.Application, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("応募記録IDの生成に失敗しました: %w", err)
	}

	app := &model.Application{
		ID:        id,
		UserID:    callerID,
		Fields:    s.clientFields(fields),
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.Put(ctx, app.ID, repository.Record(app.Document())); err != nil {
		return nil, model.NewStorageError("put", err)
	}
	return app, nil
}

// Get は呼び出し元ユーザーの応募記録を取得する。
func (s *Service) Get(ctx context.Context, callerID, id string) (*model.Application, error) {
	return s.ownedRecord(ctx, callerID, id)
}

// Update は応募記録にフィールドをマージする。
// 指定キーは上書きし、未指定キーは保持する。updatedAtは前回値以上のサーバー時刻に更新する。
func (s *Service) Update(ctx context.Context, callerID, id string, fields model.Fields) (*model.Application, error) {
	app, err := s.ownedRecord(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	for k, v := range s.clientFields(fields) {
		app.Fields[k] = v
	}

	updatedAt := s.now().UTC()
	floor := app.CreatedAt
	if app.UpdatedAt != nil {
		floor = *app.UpdatedAt
	}
	if updatedAt.Before(floor) {
		updatedAt = floor
	}
	app.UpdatedAt = &updatedAt

	if err := s.store.Put(ctx, app.ID, repository.Record(app.Document())); err != nil {
		return nil, model.NewStorageError("put", err)
	}
	return app, nil
}

// Delete は応募記録を削除し、削除前のスナップショットを返す。
func (s *Service) Delete(ctx context.Context, callerID, id string) (*model.Application, error) {
	app, err := s.ownedRecord(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		// 取得後に別リクエストが削除した場合
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewApplicationNotFoundError(id)
		}
		return nil, model.NewStorageError("delete", err)
	}

	slog.Info("応募記録をアーカイブしました",
		slog.String("user_id", callerID),
		slog.String("application_id", id),
	)
	return app, nil
}

// ownedRecord は所有者チェック付きで応募記録を取得する唯一の経路。
// 存在しない場合と他ユーザーの記録である場合は同じNotFoundを返す。
func (s *Service) ownedRecord(ctx context.Context, callerID, id string) (*model.Application, error) {
	if id == "" || callerID == "" {
		return nil, model.NewApplicationNotFoundError(id)
	}

	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, model.NewStorageError("get", err)
	}

	if !ownedBy(rec, callerID) {
		return nil, model.NewApplicationNotFoundError(id)
	}

	app, err := model.ApplicationFromDocument(rec)
	if err != nil {
		return nil, model.NewStorageError("decode", err)
	}
	return app, nil
}

// clientFields は予約フィールドを除いたクライアントフィールドのコピーを返す。
func (s *Service) clientFields(fields model.Fields) model.Fields {
	if s.sanitizer != nil {
		fields = s.sanitizer.SanitizeFields(fields)
	}
	out := make(model.Fields, len(fields))
	for k, v := range fields {
		if model.IsReservedField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func ownedBy(rec repository.Record, callerID string) bool {
	owner, ok := rec[repository.OwnerField].(string)
	return ok && owner != "" && owner == callerID
}
