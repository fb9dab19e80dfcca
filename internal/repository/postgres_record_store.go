package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresRecordStore はPostgreSQLのrecordsテーブルを使用したレコードストア。
// 1つのテーブルをcollection列で論理的に分割し、本文はJSONBで保持する。
type PostgresRecordStore struct {
	db         *sql.DB
	collection string
}

// NewPostgresRecordStore はPostgresRecordStoreを生成する。
func NewPostgresRecordStore(db *sql.DB, collection string) *PostgresRecordStore {
	return &PostgresRecordStore{db: db, collection: collection}
}

// Put は指定キーにレコードをUPSERTする。
func (s *PostgresRecordStore) Put(ctx context.Context, key string, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, body, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (collection, id)
		 DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		s.collection, key, body,
	)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// Get は指定キーのレコードを取得する。
func (s *PostgresRecordStore) Get(ctx context.Context, key string) (Record, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE collection = $1 AND id = $2`,
		s.collection, key,
	).Scan(&body)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return decodeRecord(body)
}

// Delete は指定キーのレコードを削除する。
func (s *PostgresRecordStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = $1 AND id = $2`,
		s.collection, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Scan はコレクション内の全レコードをid順で返す。
func (s *PostgresRecordStore) Scan(ctx context.Context) ([]Record, error) {
	return s.query(ctx,
		`SELECT body FROM records WHERE collection = $1 ORDER BY id`,
		s.collection,
	)
}

// ListByOwner はbody->>'userId'の式インデックスを使って所有者のレコードを返す。
func (s *PostgresRecordStore) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	return s.query(ctx,
		`SELECT body FROM records
		 WHERE collection = $1 AND body->>'userId' = $2
		 ORDER BY id`,
		s.collection, ownerID,
	)
}

// Ping はデータベースへの疎通を確認する。
func (s *PostgresRecordStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresRecordStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

// compile-time interface check
var (
	_ RecordStore = (*PostgresRecordStore)(nil)
	_ OwnerLister = (*PostgresRecordStore)(nil)
	_ Pinger      = (*PostgresRecordStore)(nil)
)
