package repository

import "context"

// BrowserStorage はLocalStorageRepositoryを1つのブラウザIDに束縛したビュー。
// session.Storage を満たし、Session Storeからはブラウザのローカルストレージとして見える。
type BrowserStorage struct {
	repo      LocalStorageRepository
	browserID string
}

// NewBrowserStorage はBrowserStorageを生成する。
func NewBrowserStorage(repo LocalStorageRepository, browserID string) *BrowserStorage {
	return &BrowserStorage{repo: repo, browserID: browserID}
}

// BrowserID は束縛されたブラウザIDを返す。
func (s *BrowserStorage) BrowserID() string {
	return s.browserID
}

// Get は指定キーの値を取得する。
func (s *BrowserStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.Get(ctx, s.browserID, key)
}

// SetMany は複数キーをアトミックに書き込む。
func (s *BrowserStorage) SetMany(ctx context.Context, values map[string]string) error {
	return s.repo.SetMany(ctx, s.browserID, values)
}

// Delete は指定キーを削除する。
func (s *BrowserStorage) Delete(ctx context.Context, keys ...string) error {
	return s.repo.Delete(ctx, s.browserID, keys...)
}

// Update は指定キーをfnの結果でアトミックに書き換える。
func (s *BrowserStorage) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.repo.Update(ctx, s.browserID, key, fn)
}
