// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/jobtracker/internal/model"
)

// ErrNotFound は指定キーのレコードが存在しないことを示す。
var ErrNotFound = errors.New("repository: not found")

// OwnerField はレコードの所有者IDを保持するフィールド名。
const OwnerField = model.FieldUserID

// Record はストアに保存されるJSONドキュメント。
type Record map[string]any

// RecordStore はキーでレコードを保持する単純なコンテナ。
// 認可の判断は持たず、呼び出し側（サービス層）が所有者チェックを行う。
// 複数キーにまたがるトランザクションは提供しない。
type RecordStore interface {
	// Put は指定キーにレコードを保存する。既存レコードは置き換えられる。
	Put(ctx context.Context, key string, record Record) error

	// Get は指定キーのレコードを取得する。存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, key string) (Record, error)

	// Delete は指定キーのレコードを削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, key string) error

	// Scan は全レコードを返す。1回の呼び出しの中ではキー順で安定している。
	Scan(ctx context.Context) ([]Record, error)
}

// OwnerLister は所有者IDによる二次インデックスを持つストアが実装する。
// 返却値には所有者が異なるレコードが混ざる可能性があるため、
// 呼び出し側で必ず所有者フィールドを再確認すること。
type OwnerLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)
}

// Pinger はバックエンドへの疎通確認を提供する。
type Pinger interface {
	Ping(ctx context.Context) error
}

// ScanOwned はOwnerListerを実装するストアではインデックスを使い、
// そうでなければ全件Scanで候補レコードを返す。
func ScanOwned(ctx context.Context, store RecordStore, ownerID string) ([]Record, error) {
	if lister, ok := store.(OwnerLister); ok {
		return lister.ListByOwner(ctx, ownerID)
	}
	return store.Scan(ctx)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Save はユーザーを作成または更新する。
	Save(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
