// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 内部IDは作成時に採番され、以後変化しない。
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderUserID) の組はシステム全体で一意であり、
// 1つのIdP上のアカウントは常に同じUserに解決される。
// メールアドレスは一意キーではない（IdP間で食い違うことがあるため、
// emailによるアカウント統合は行わない）。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// サーバー側のsessionsテーブルで管理し、ログアウト時に即時失効させる。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
