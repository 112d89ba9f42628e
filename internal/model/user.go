// Package model はドメインモデルを定義する。
package model

import "time"

// User はブラウザのローカルストレージに保存するユーザーレコードを表す。
// JSONのフィールド名はバックエンドおよび既存クライアントとの互換のため固定。
type User struct {
	ID             string    `json:"id"`
	UID            string    `json:"uid"`
	Email          string    `json:"email"`
	OrganizationID string    `json:"organizationId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Session は現在のブラウザの認証済みアイデンティティとクレデンシャルを表す。
// Session Storeのみが所有し、外部からは読み取り専用のスナップショットとして扱う。
type Session struct {
	SubjectID string
	Email     string
	Token     string
	User      User
}

// Valid はTokenとSubjectIDの両方が空でない場合にtrueを返す。
// 片方だけが設定された中途半端な状態は永続化しない。
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.SubjectID != ""
}

// PendingSignIn はマジックリンク要求からリンク検証までの間だけ保持するメールアドレス。
type PendingSignIn struct {
	Email string
}
