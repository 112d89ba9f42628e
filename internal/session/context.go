package session

import "context"

type contextKey string

var (
	storeContextKey   = contextKey("session_store")
	pendingContextKey = contextKey("pending_sign_in")
)

// WithStore はコンテキストにStoreを注入する。
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey, s)
}

// FromContext はコンテキストからStoreを取得する。存在しない場合はnil。
func FromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(storeContextKey).(*Store)
	return s
}

// WithPending はコンテキストにPendingを注入する。
func WithPending(ctx context.Context, p *Pending) context.Context {
	return context.WithValue(ctx, pendingContextKey, p)
}

// PendingFromContext はコンテキストからPendingを取得する。存在しない場合はnil。
func PendingFromContext(ctx context.Context) *Pending {
	p, _ := ctx.Value(pendingContextKey).(*Pending)
	return p
}
