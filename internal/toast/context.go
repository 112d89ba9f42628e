package toast

import "context"

type contextKey struct{}

// WithQueue はコンテキストにQueueを注入する。
func WithQueue(ctx context.Context, q *Queue) context.Context {
	return context.WithValue(ctx, contextKey{}, q)
}

// FromContext はコンテキストからQueueを取得する。存在しない場合はnil。
func FromContext(ctx context.Context) *Queue {
	q, _ := ctx.Value(contextKey{}).(*Queue)
	return q
}
