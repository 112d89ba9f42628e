package repository

import (
	"context"
	"sync"
	"time"
)

type memoryBrowser struct {
	values    map[string]string
	updatedAt time.Time
}

// MemoryLocalStorageRepo はプロセス内メモリを使用したブラウザストレージリポジトリ。
// 開発環境とテストで使用する。再起動でデータは失われる。
type MemoryLocalStorageRepo struct {
	mu       sync.Mutex
	browsers map[string]*memoryBrowser
	now      func() time.Time
}

// NewMemoryLocalStorageRepo はMemoryLocalStorageRepoを生成する。
func NewMemoryLocalStorageRepo() *MemoryLocalStorageRepo {
	return &MemoryLocalStorageRepo{
		browsers: make(map[string]*memoryBrowser),
		now:      time.Now,
	}
}

// Get は指定キーの値を取得し、ブラウザの最終利用時刻を更新する。
func (r *MemoryLocalStorageRepo) Get(ctx context.Context, browserID, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.browsers[browserID]
	if !ok {
		return "", false, nil
	}
	b.updatedAt = r.now()
	v, ok := b.values[key]
	return v, ok, nil
}

// SetMany は1回のロック区間で複数キーを書き込む。
func (r *MemoryLocalStorageRepo) SetMany(ctx context.Context, browserID string, values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.browsers[browserID]
	if !ok {
		b = &memoryBrowser{values: make(map[string]string)}
		r.browsers[browserID] = b
	}
	for k, v := range values {
		b.values[k] = v
	}
	b.updatedAt = r.now()
	return nil
}

// Delete は1回のロック区間で指定キーを削除する。
func (r *MemoryLocalStorageRepo) Delete(ctx context.Context, browserID string, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.browsers[browserID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(b.values, k)
	}
	b.updatedAt = r.now()
	if len(b.values) == 0 {
		delete(r.browsers, browserID)
	}
	return nil
}

// Update はロックを保持したままfnを呼び出し、結果を書き込む。
func (r *MemoryLocalStorageRepo) Update(ctx context.Context, browserID, key string, fn UpdateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.browsers[browserID]
	var current string
	var found bool
	if ok {
		current, found = b.values[key]
	}

	next, keep, err := fn(current, found)
	if err != nil {
		return err
	}

	switch {
	case keep:
		if !ok {
			b = &memoryBrowser{values: make(map[string]string)}
			r.browsers[browserID] = b
		}
		b.values[key] = next
	case ok:
		delete(b.values, key)
		if len(b.values) == 0 {
			delete(r.browsers, browserID)
			return nil
		}
	default:
		return nil
	}
	b.updatedAt = r.now()
	return nil
}

// PurgeIdle はidleFor以上利用のないブラウザを削除し、削除したキーの数を返す。
func (r *MemoryLocalStorageRepo) PurgeIdle(ctx context.Context, idleFor time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idleFor)
	var purged int64
	for id, b := range r.browsers {
		if b.updatedAt.Before(cutoff) {
			purged += int64(len(b.values))
			delete(r.browsers, id)
		}
	}
	return purged, nil
}

// compile-time interface check
var _ LocalStorageRepository = (*MemoryLocalStorageRepo)(nil)
