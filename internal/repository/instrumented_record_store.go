package repository

import (
	"context"
	"time"
)

// StoreObserver はストア操作の結果を受け取るインターフェース。
// metrics.Collector が実装する。
type StoreObserver interface {
	ObserveStoreOperation(backend, op string, duration time.Duration, err error)
}

// InstrumentedRecordStore はRecordStoreの各操作の所要時間と結果をStoreObserverへ通知するデコレータ。
type InstrumentedRecordStore struct {
	next     RecordStore
	observer StoreObserver
	backend  string
}

// NewInstrumentedRecordStore はInstrumentedRecordStoreを生成する。
func NewInstrumentedRecordStore(next RecordStore, observer StoreObserver, backend string) *InstrumentedRecordStore {
	return &InstrumentedRecordStore{next: next, observer: observer, backend: backend}
}

func (s *InstrumentedRecordStore) observe(op string, start time.Time, err error) {
	s.observer.ObserveStoreOperation(s.backend, op, time.Since(start), err)
}

// Put はPut操作を計測する。
func (s *InstrumentedRecordStore) Put(ctx context.Context, key string, record Record) (err error) {
	defer func(start time.Time) { s.observe("put", start, err) }(time.Now())
	return s.next.Put(ctx, key, record)
}

// Get はGet操作を計測する。
func (s *InstrumentedRecordStore) Get(ctx context.Context, key string) (rec Record, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.next.Get(ctx, key)
}

// Delete はDelete操作を計測する。
func (s *InstrumentedRecordStore) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.next.Delete(ctx, key)
}

// Scan はScan操作を計測する。
func (s *InstrumentedRecordStore) Scan(ctx context.Context) (recs []Record, err error) {
	defer func(start time.Time) { s.observe("scan", start, err) }(time.Now())
	return s.next.Scan(ctx)
}

// ListByOwner は内側のストアのインデックス（なければScan）を計測する。
func (s *InstrumentedRecordStore) ListByOwner(ctx context.Context, ownerID string) (recs []Record, err error) {
	defer func(start time.Time) { s.observe("list_by_owner", start, err) }(time.Now())
	return ScanOwned(ctx, s.next, ownerID)
}

// Ping は内側のストアがPingerを実装していれば委譲する。
func (s *InstrumentedRecordStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// compile-time interface check
var (
	_ RecordStore = (*InstrumentedRecordStore)(nil)
	_ OwnerLister = (*InstrumentedRecordStore)(nil)
	_ Pinger      = (*InstrumentedRecordStore)(nil)
)
