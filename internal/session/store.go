// Package session はブラウザ単位の認証状態（Session Store）を提供する。
//
// Session Storeは「このブラウザは認証済みか」の唯一の情報源であり、
// Route Guardとバックエンドを呼び出すすべての画面から参照される。
// 永続化はブラウザスコープのStorageに対して行い、メモリ上のスナップショットは
// 1つのポインタで差し替えるため、トークンだけ・ユーザーだけの状態は観測されない。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hitoshi/datapulse-console/internal/model"
)

// 永続ストレージのキー。
const (
	TokenKey = "auth_token"
	UserKey  = "user"
)

// ErrInvalidSession はtokenまたはsubjectIDが空のセッションを確立しようとした場合のエラー。
var ErrInvalidSession = errors.New("session requires both token and subject id")

// Storage はブラウザスコープの永続キーバリューストレージ。
// repository.BrowserStorage が実装する。
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// SignOuter は外部のサインアウト処理。失敗してもローカルのセッション破棄は行う。
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Store はSession Store。
// rehydrate/establish/clearの3操作でのみ状態が変化する。
type Store struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time

	current atomic.Pointer[model.Session]
	settled atomic.Bool
}

// NewStore はStoreを生成する。生成直後は未確定（Settled=false）で、Rehydrateで確定する。
func NewStore(storage Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Rehydrate は永続化されたトークンとユーザーを読み込みメモリに復元する。
// 両方が揃っている場合のみセッションを復元し、片方だけ残っている場合は破棄する。
// ネットワーク呼び出しは行わない。読み込みに失敗した場合は未確定のままエラーを返す。
func (s *Store) Rehydrate(ctx context.Context) error {
	token, hasToken, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	rawUser, hasUser, err := s.storage.Get(ctx, UserKey)
	if err != nil {
		return fmt.Errorf("failed to read user: %w", err)
	}

	if !hasToken && !hasUser {
		s.current.Store(nil)
		s.settled.Store(true)
		return nil
	}

	var user model.User
	if hasUser {
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			s.logger.Warn("discarding unreadable persisted user", slog.String("error", err.Error()))
			hasUser = false
		}
	}

	sess := &model.Session{
		SubjectID: user.ID,
		Email:     user.Email,
		Token:     token,
		User:      user,
	}
	if !hasToken || !hasUser || !sess.Valid() {
		// 中途半端な状態は復元せず、永続ストレージからも取り除く
		s.current.Store(nil)
		if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
			return fmt.Errorf("failed to discard partial session: %w", err)
		}
		s.settled.Store(true)
		return nil
	}

	s.current.Store(sess)
	s.settled.Store(true)
	return nil
}

// Settled は初回のRehydrateが完了しているかを返す。
func (s *Store) Settled() bool {
	return s.settled.Load()
}

// Establish はセッションを永続ストレージとメモリに書き込む。
// 永続化はトークンとユーザーを1回のSetManyで行い、成功した場合のみメモリを差し替える。
func (s *Store) Establish(ctx context.Context, subjectID, email, token string) (*model.Session, error) {
	if subjectID == "" || token == "" {
		return nil, ErrInvalidSession
	}

	now := s.now().UTC()
	user := model.User{
		ID:        subjectID,
		UID:       subjectID,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}

	if err := s.storage.SetMany(ctx, map[string]string{
		TokenKey: token,
		UserKey:  string(rawUser),
	}); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	sess := &model.Session{
		SubjectID: subjectID,
		Email:     email,
		Token:     token,
		User:      user,
	}
	s.current.Store(sess)
	s.settled.Store(true)
	return sess, nil
}

// Clear はメモリと永続ストレージからセッションを取り除く。
// メモリ側は先に破棄するため、永続ストレージの削除に失敗しても以後のリクエストでは未認証として扱う。
func (s *Store) Clear(ctx context.Context) error {
	s.current.Store(nil)
	if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// SignOut は外部のサインアウトを試み、結果にかかわらずローカルのセッションを破棄する。
// ローカルのセッション無効化はネットワークの可用性に依存しない。
func (s *Store) SignOut(ctx context.Context, remote SignOuter) error {
	if remote != nil {
		if err := remote.SignOut(ctx); err != nil {
			s.logger.Warn("remote sign-out failed, clearing local session anyway",
				slog.String("error", err.Error()),
			)
		}
	}
	return s.Clear(ctx)
}

// Current は現在のセッションのスナップショットを返す。未認証の場合はnil。
func (s *Store) Current() *model.Session {
	return s.current.Load()
}

// Token は現在のトークンを返す。
func (s *Store) Token() string {
	if sess := s.current.Load(); sess != nil {
		return sess.Token
	}
	return ""
}

// User は現在のユーザーを返す。
func (s *Store) User() *model.User {
	if sess := s.current.Load(); sess != nil {
		u := sess.User
		return &u
	}
	return nil
}

// IsAuthenticated はトークンとユーザーの両方が揃っている場合にtrueを返す。
func (s *Store) IsAuthenticated() bool {
	return s.current.Load().Valid()
}
