package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"
)

// RedisRecordStore はRedisのハッシュを使用したレコードストア。
//
// キー構成:
//
//	<prefix><collection>                 HASH  id -> JSON
//	<prefix><collection>:owner:<userId>  SET   所有者ごとのid一覧
//
// 所有者セットは二次インデックスであり、ListByOwnerの結果は本体のuserIdで再確認する。
type RedisRecordStore struct {
	client  *redis.Client
	hashKey string
}

// NewRedisRecordStore はRedisRecordStoreを生成する。
func NewRedisRecordStore(client *redis.Client, prefix, collection string) *RedisRecordStore {
	return &RedisRecordStore{
		client:  client,
		hashKey: prefix + collection,
	}
}

func (s *RedisRecordStore) ownerKey(ownerID string) string {
	return s.hashKey + ":owner:" + ownerID
}

// Put は指定キーにレコードを保存し、所有者インデックスを更新する。
func (s *RedisRecordStore) Put(ctx context.Context, key string, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	owner, _ := record[OwnerField].(string)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey, key, body)
		if owner != "" {
			pipe.SAdd(ctx, s.ownerKey(owner), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// Get は指定キーのレコードを取得する。
func (s *RedisRecordStore) Get(ctx context.Context, key string) (Record, error) {
	body, err := s.client.HGet(ctx, s.hashKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return decodeRecord(body)
}

// Delete は指定キーのレコードと所有者インデックスのエントリを削除する。
func (s *RedisRecordStore) Delete(ctx context.Context, key string) error {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	owner, _ := rec[OwnerField].(string)

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.HDel(ctx, s.hashKey, key)
		if owner != "" {
			pipe.SRem(ctx, s.ownerKey(owner), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	// GetとHDELの間に別リクエストが削除した場合
	if deleted.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Scan はコレクション内の全レコードをキー順で返す。
func (s *RedisRecordStore) Scan(ctx context.Context) ([]Record, error) {
	all, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec, err := decodeRecord([]byte(all[k]))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListByOwner は所有者セットからidを引き、本体をHMGETで取得する。
// インデックスに残った削除済みidは読み飛ばす。
func (s *RedisRecordStore) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read owner index: %w", err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}
	sort.Strings(ids)

	values, err := s.client.HMGet(ctx, s.hashKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch owner records: %w", err)
	}

	records := make([]Record, 0, len(values))
	for _, v := range values {
		body, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(body))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisRecordStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// compile-time interface check
var (
	_ RecordStore = (*RedisRecordStore)(nil)
	_ OwnerLister = (*RedisRecordStore)(nil)
	_ Pinger      = (*RedisRecordStore)(nil)
)
