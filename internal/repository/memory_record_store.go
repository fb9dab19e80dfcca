package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryRecordStore はプロセス内メモリにレコードを保持するストア。
// ローカル開発とテストで使用する。
// レコードはJSONで保持するため、呼び出し側が返却値を変更しても内部状態は変わらない。
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryRecordStore はMemoryRecordStoreを生成する。
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string][]byte)}
}

// Put は指定キーにレコードを保存する。
func (s *MemoryRecordStore) Put(_ context.Context, key string, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	s.mu.Lock()
	s.records[key] = body
	s.mu.Unlock()
	return nil
}

// Get は指定キーのレコードを取得する。
func (s *MemoryRecordStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.RLock()
	body, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(body)
}

// Delete は指定キーのレコードを削除する。
func (s *MemoryRecordStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Scan は全レコードをキー順で返す。
func (s *MemoryRecordStore) Scan(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	bodies := make([][]byte, len(keys))
	for i, k := range keys {
		bodies[i] = s.records[k]
	}
	s.mu.RUnlock()

	records := make([]Record, 0, len(bodies))
	for _, body := range bodies {
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Len は保持しているレコード数を返す。テスト用。
func (s *MemoryRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// decodeRecord はJSONバイト列をRecordに変換する。
func decodeRecord(body []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// compile-time interface check
var _ RecordStore = (*MemoryRecordStore)(nil)
