package verification

import (
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// DefaultRegistryTTL は最後の参照からControllerを保持する時間。
const DefaultRegistryTTL = 10 * time.Minute

// registryEntry はRegistryのエントリ。
type registryEntry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Registry は（ブラウザ, リンク）ごとに1つのControllerを保持する。
// 同じリンクの重複読み込みや並行リクエストは同じControllerを共有する。
// 一定時間参照されないエントリは定期的に破棄され、予約済みの遷移も取り消される。
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry はRegistryを生成し、期限切れエントリの掃除を開始する。
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		entries: make(map[string]*registryEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Acquire はkeyに対応するControllerを返す。存在しない場合はfactoryで生成する。
func (r *Registry) Acquire(key string, factory func() *Controller) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.lastSeen = r.now()
		return e.ctrl
	}
	ctrl := factory()
	r.entries[key] = &registryEntry{ctrl: ctrl, lastSeen: r.now()}
	return ctrl
}

// Lookup はkeyに対応するControllerを返す。存在しない場合はnil。
func (r *Registry) Lookup(key string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		e.lastSeen = r.now()
		return e.ctrl
	}
	return nil
}

// Len は保持しているControllerの数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop は掃除を停止し、保持しているすべてのControllerを閉じる。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		defer r.mu.Unlock()
		for key, e := range r.entries {
			e.ctrl.Close()
			delete(r.entries, key)
		}
	})
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle はttlを超えて参照されていないControllerを閉じて取り除く。
func (r *Registry) evictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for key, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			e.ctrl.Close()
			delete(r.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.Debug("evicted idle verification flows", slog.Int("count", evicted))
	}
	return evicted
}

// LinkKey はブラウザと検証リンクからRegistryのキーを作る。
// コードが取り出せないリンクはクエリとフラグメント全体で区別する。
func LinkKey(browserID string, loc *url.URL) string {
	code := ExtractParams(loc, "").Code
	if code == "" && loc != nil {
		code = "raw:" + loc.RawQuery + "#" + loc.EscapedFragment()
	}
	return browserID + "|" + code
}
