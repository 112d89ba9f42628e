// Package toast はブラウザ単位の一時通知（トースト）を扱う。
// 通知はブラウザスコープのストレージに積まれ、次に描画される画面で取り出される。
package toast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/datapulse-console/internal/repository"
	"github.com/hitoshi/datapulse-console/internal/security"
)

// StorageKey はトーストを保持するキー。
const StorageKey = "toasts"

// maxQueued はブラウザごとに保持するトーストの上限。古いものから捨てる。
const maxQueued = 10

// 通知レベル。
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
	LevelWarning = "warning"
)

// Toast は1件の通知。
type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Storage はブラウザスコープのストレージ。
// 同じブラウザの並行リクエストがトーストを失わないよう、キューの読み書きはUpdateで行う。
type Storage interface {
	Update(ctx context.Context, key string, fn repository.UpdateFunc) error
}

// Queue はトーストのキュー。
type Queue struct {
	storage   Storage
	sanitizer security.MessageSanitizerService
	logger    *slog.Logger
}

// NewQueue はQueueを生成する。
func NewQueue(storage Storage, sanitizer security.MessageSanitizerService, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{storage: storage, sanitizer: sanitizer, logger: logger}
}

// Push はトーストを積む。メッセージはHTMLを除去してから保存する。
func (q *Queue) Push(ctx context.Context, level, message string) error {
	if q.sanitizer != nil {
		message = q.sanitizer.Sanitize(message)
	}
	if message == "" {
		return nil
	}
	if !validLevel(level) {
		level = LevelInfo
	}

	err := q.storage.Update(ctx, StorageKey, func(current string, found bool) (string, bool, error) {
		queued := q.decode(current, found)
		queued = append(queued, Toast{Level: level, Message: message})
		if len(queued) > maxQueued {
			queued = queued[len(queued)-maxQueued:]
		}
		raw, err := json.Marshal(queued)
		if err != nil {
			return "", false, fmt.Errorf("failed to encode toasts: %w", err)
		}
		return string(raw), true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save toasts: %w", err)
	}
	return nil
}

// Drain は積まれたトーストを取り出して削除する。取り出しと削除は1回のUpdateで行う。
// 取り出しに失敗した場合は空を返し、画面の描画は止めない。
func (q *Queue) Drain(ctx context.Context) []Toast {
	var queued []Toast
	err := q.storage.Update(ctx, StorageKey, func(current string, found bool) (string, bool, error) {
		queued = q.decode(current, found)
		return "", false, nil
	})
	if err != nil {
		q.logger.Warn("failed to drain toasts", slog.String("error", err.Error()))
		return nil
	}
	return queued
}

func (q *Queue) decode(raw string, found bool) []Toast {
	if !found || raw == "" {
		return nil
	}
	var queued []Toast
	if err := json.Unmarshal([]byte(raw), &queued); err != nil {
		// 壊れたキューは捨てる
		q.logger.Warn("discarding unreadable toast queue", slog.String("error", err.Error()))
		return nil
	}
	return queued
}

func validLevel(level string) bool {
	switch level {
	case LevelSuccess, LevelError, LevelInfo, LevelWarning:
		return true
	}
	return false
}
