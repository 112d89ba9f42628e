// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"
)

// UpdateFunc は現在の値を受け取り、書き込む値を返す。keep=falseの場合はキーを削除する。
type UpdateFunc func(current string, found bool) (next string, keep bool, err error)

// LocalStorageRepository はブラウザ単位の永続キーバリューストレージのインターフェース。
// ブラウザはconsole_bid Cookieに格納されたIDで識別する。
// トークン、ユーザー、サインイン中のメールアドレス、トースト通知を保持する。
type LocalStorageRepository interface {
	// Get は指定キーの値を取得する。存在しない場合はfound=falseを返す。
	// 読み取りもブラウザの利用とみなし、アイドル期限を延長する。
	Get(ctx context.Context, browserID, key string) (value string, found bool, err error)

	// SetMany は複数キーを1回の操作でアトミックに書き込む。
	// 途中状態（一部のキーだけが書き込まれた状態）は他の読み取りから観測されない。
	SetMany(ctx context.Context, browserID string, values map[string]string) error

	// Delete は指定キーをアトミックに削除する。存在しないキーは無視する。
	Delete(ctx context.Context, browserID string, keys ...string) error

	// Update は1つのキーを読み取り、fnの結果で書き換えるまでを他の書き込みと直列化する。
	// fnがエラーを返した場合は何も書き込まずにそのエラーを返す。
	Update(ctx context.Context, browserID, key string, fn UpdateFunc) error

	// PurgeIdle はidleFor以上利用のないブラウザのデータを削除し、削除件数を返す。
	PurgeIdle(ctx context.Context, idleFor time.Duration) (int64, error)
}
