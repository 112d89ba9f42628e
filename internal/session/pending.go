package session

import (
	"context"
	"fmt"

	"github.com/hitoshi/datapulse-console/internal/model"
)

// PendingKey はサインインリンク要求時のメールアドレスを保持するキー。
const PendingKey = "emailForSignIn"

// Pending はPendingSignInの保存先。
// リンク要求時に書き込み、検証成功時に読み取り・削除する。
type Pending struct {
	storage Storage
}

// NewPending はPendingを生成する。
func NewPending(storage Storage) *Pending {
	return &Pending{storage: storage}
}

// Save はメールアドレスを保存する。
func (p *Pending) Save(ctx context.Context, email string) error {
	if err := p.storage.SetMany(ctx, map[string]string{PendingKey: email}); err != nil {
		return fmt.Errorf("failed to save pending sign-in: %w", err)
	}
	return nil
}

// Load は保存されたPendingSignInを返す。存在しない場合はnil。
func (p *Pending) Load(ctx context.Context) (*model.PendingSignIn, error) {
	email, found, err := p.storage.Get(ctx, PendingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending sign-in: %w", err)
	}
	if !found || email == "" {
		return nil, nil
	}
	return &model.PendingSignIn{Email: email}, nil
}

// Clear はPendingSignInを削除する。
func (p *Pending) Clear(ctx context.Context) error {
	if err := p.storage.Delete(ctx, PendingKey); err != nil {
		return fmt.Errorf("failed to clear pending sign-in: %w", err)
	}
	return nil
}
