package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "console:browser:"

// redisUpdateAttempts はUpdateが競合でやり直す回数の上限。
const redisUpdateAttempts = 5

// ErrUpdateConflict は競合が続きUpdateを完了できなかったことを示す。
var ErrUpdateConflict = errors.New("browser storage update conflicted too many times")

// RedisLocalStorageRepo はRedisを使用したブラウザストレージリポジトリ。
// ブラウザごとに1つのハッシュを持ち、読み書きのたびにTTLを延長する。
type RedisLocalStorageRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLocalStorageRepo はRedisLocalStorageRepoを生成する。
// ttlはブラウザが最後に利用してからデータを保持する期間。
func NewRedisLocalStorageRepo(client redis.UniversalClient, ttl time.Duration) *RedisLocalStorageRepo {
	return &RedisLocalStorageRepo{client: client, ttl: ttl}
}

func redisKey(browserID string) string {
	return redisKeyPrefix + browserID
}

// Get は指定キーの値を取得し、同じパイプラインでTTLを延長する。
func (r *RedisLocalStorageRepo) Get(ctx context.Context, browserID, key string) (string, bool, error) {
	hkey := redisKey(browserID)
	var get *redis.StringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, hkey, key)
		if r.ttl > 0 {
			pipe.Expire(ctx, hkey, r.ttl)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false, fmt.Errorf("failed to get browser storage value: %w", err)
	}

	value, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get browser storage value: %w", err)
	}
	return value, true, nil
}

// SetMany はMULTI/EXECで複数キーをアトミックに書き込む。
func (r *RedisLocalStorageRepo) SetMany(ctx context.Context, browserID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	key := redisKey(browserID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set browser storage values: %w", err)
	}
	return nil
}

// Delete はMULTI/EXECで指定キーを削除する。
func (r *RedisLocalStorageRepo) Delete(ctx context.Context, browserID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	key := redisKey(browserID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete browser storage values: %w", err)
	}
	return nil
}

// Update はWATCHでハッシュを監視し、読み取り後に他の書き込みがあればやり直す。
func (r *RedisLocalStorageRepo) Update(ctx context.Context, browserID, key string, fn UpdateFunc) error {
	hkey := redisKey(browserID)

	// fnのエラーはRedisのエラーと区別してそのまま返す
	var fnErr error
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hkey, key).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			found = false
		} else if err != nil {
			return err
		}

		next, keep, err := fn(current, found)
		if err != nil {
			fnErr = err
			return err
		}
		if !keep && !found {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.HSet(ctx, hkey, key, next)
				if r.ttl > 0 {
					pipe.Expire(ctx, hkey, r.ttl)
				}
				return nil
			}
			pipe.HDel(ctx, hkey, key)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisUpdateAttempts; attempt++ {
		fnErr = nil
		err := r.client.Watch(ctx, txf, hkey)
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update browser storage value %q: %w", key, err)
		}
		return nil
	}
	return ErrUpdateConflict
}

// PurgeIdle はRedisではTTLで失効させるため何もしない。
func (r *RedisLocalStorageRepo) PurgeIdle(ctx context.Context, idleFor time.Duration) (int64, error) {
	return 0, nil
}

// compile-time interface check
var _ LocalStorageRepository = (*RedisLocalStorageRepo)(nil)
