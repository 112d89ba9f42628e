package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// PostgresLocalStorageRepo はPostgreSQLを使用したブラウザストレージリポジトリ。
// browser_storageテーブルに(browser_id, key)単位で値を保持する。
type PostgresLocalStorageRepo struct {
	db *sql.DB
}

// NewPostgresLocalStorageRepo はPostgresLocalStorageRepoを生成する。
func NewPostgresLocalStorageRepo(db *sql.DB) *PostgresLocalStorageRepo {
	return &PostgresLocalStorageRepo{db: db}
}

// Get は指定キーの値を取得する。
// PurgeIdleはブラウザ内の最新のupdated_atを見るため、読み取った行のupdated_atも進める。
func (r *PostgresLocalStorageRepo) Get(ctx context.Context, browserID, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`UPDATE browser_storage SET updated_at = $3
		 WHERE browser_id = $1 AND key = $2
		 RETURNING value`,
		browserID, key, time.Now(),
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get browser storage value: %w", err)
	}

	return value, true, nil
}

// SetMany は複数キーを同一トランザクションでUPSERTする。
func (r *PostgresLocalStorageRepo) SetMany(ctx context.Context, browserID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// キー順を固定して同一ブラウザへの並行書き込みでのデッドロックを避ける
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now()
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO browser_storage (browser_id, key, value, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (browser_id, key)
			 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			browserID, k, values[k], now,
		); err != nil {
			return fmt.Errorf("failed to set browser storage value %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit browser storage values: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *PostgresLocalStorageRepo) Delete(ctx context.Context, browserID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM browser_storage WHERE browser_id = $1 AND key = $2`,
			browserID, k,
		); err != nil {
			return fmt.Errorf("failed to delete browser storage value %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit browser storage deletion: %w", err)
	}
	return nil
}

// Update はアドバイザリロックで同じキーへの更新を直列化し、
// 読み取りから書き込みまでを1トランザクションで行う。
// 行がまだ存在しない場合も直列化されるよう、行ロックではなくキー単位のロックを使う。
func (r *PostgresLocalStorageRepo) Update(ctx context.Context, browserID, key string, fn UpdateFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,
		browserID, key,
	); err != nil {
		return fmt.Errorf("failed to lock browser storage key %q: %w", key, err)
	}

	var current string
	found := true
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM browser_storage WHERE browser_id = $1 AND key = $2`,
		browserID, key,
	).Scan(&current)
	if err == sql.ErrNoRows {
		found = false
	} else if err != nil {
		return fmt.Errorf("failed to read browser storage value %q: %w", key, err)
	}

	next, keep, err := fn(current, found)
	if err != nil {
		return err
	}

	switch {
	case keep:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO browser_storage (browser_id, key, value, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (browser_id, key)
			 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			browserID, key, next, time.Now(),
		); err != nil {
			return fmt.Errorf("failed to set browser storage value %q: %w", key, err)
		}
	case found:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM browser_storage WHERE browser_id = $1 AND key = $2`,
			browserID, key,
		); err != nil {
			return fmt.Errorf("failed to delete browser storage value %q: %w", key, err)
		}
	default:
		return nil
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit browser storage update: %w", err)
	}
	return nil
}

// PurgeIdle は最終利用からidleFor以上経過したブラウザの全キーを削除する。
func (r *PostgresLocalStorageRepo) PurgeIdle(ctx context.Context, idleFor time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM browser_storage
		 WHERE browser_id IN (
		   SELECT browser_id FROM browser_storage
		   GROUP BY browser_id
		   HAVING max(updated_at) < $1
		 )`,
		time.Now().Add(-idleFor),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idle browser storage: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ LocalStorageRepository = (*PostgresLocalStorageRepo)(nil)
