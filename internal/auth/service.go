// Package auth はマジックリンクの要求、新規登録、サインアウトを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/hitoshi/datapulse-console/internal/model"
	"github.com/hitoshi/datapulse-console/internal/session"
)

// Backend は認証に関わるバックエンドAPI。
type Backend interface {
	SendMagicLink(ctx context.Context, email string) error
	SignUp(ctx context.Context, req model.SignUpRequest) error
	SignOut(ctx context.Context) error
}

// PendingSaver はリンク要求時のメールアドレスを保存する。
type PendingSaver interface {
	Save(ctx context.Context, email string) error
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	backend Backend
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger}
}

// RequestMagicLink はメールアドレスを検証し、PendingSignInを保存してからリンク送信を依頼する。
// 保存を先に行うのは、リンクを開いたブラウザでメールアドレスを復元するため。
func (s *Service) RequestMagicLink(ctx context.Context, pending PendingSaver, email string) error {
	// 1. 入力検証
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	// 2. PendingSignInを保存
	if err := pending.Save(ctx, normalized); err != nil {
		return fmt.Errorf("failed to save pending sign-in: %w", err)
	}

	// 3. バックエンドにリンク送信を依頼
	if err := s.backend.SendMagicLink(ctx, normalized); err != nil {
		return fmt.Errorf("failed to send magic link: %w", err)
	}

	s.logger.Info("magic link requested")
	return nil
}

// SignUp は必須項目を検証し、PendingSignInを保存してから登録を依頼する。
func (s *Service) SignUp(ctx context.Context, pending PendingSaver, req model.SignUpRequest) error {
	// 1. 入力検証
	normalized, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}
	req.Email = normalized
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)

	required := []struct {
		field string
		value string
	}{
		{"Name", req.Name},
		{"Phone", req.Phone},
		{"Organization name", req.OrganizationName},
		{"Organization type", req.OrganizationType},
		{"Organization size", req.OrganizationSize},
	}
	for _, r := range required {
		if r.value == "" {
			return model.NewMissingFieldError(r.field)
		}
	}

	// 2. PendingSignInを保存
	if err := pending.Save(ctx, req.Email); err != nil {
		return fmt.Errorf("failed to save pending sign-in: %w", err)
	}

	// 3. バックエンドに登録を依頼
	if err := s.backend.SignUp(ctx, req); err != nil {
		return fmt.Errorf("failed to sign up: %w", err)
	}

	s.logger.Info("sign-up requested", slog.String("organization_type", req.OrganizationType))
	return nil
}

// SignOut はバックエンドへのサインアウト通知を試み、結果にかかわらずローカルのセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, store *session.Store) error {
	if store == nil {
		return nil
	}
	return store.SignOut(ctx, s.backend)
}

// normalizeEmail はメールアドレスの形式を検証し、アドレス部分のみを返す。
func normalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", model.NewMissingFieldError("Email")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", model.NewInvalidEmailError(trimmed)
	}
	return addr.Address, nil
}
