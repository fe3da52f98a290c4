// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/propsdb/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identitiesの(provider, provider_user_id)一意制約に違反した場合は
	// ErrDuplicateIdentityでラップしたエラーを返す。
	// 同一IdPアカウントの同時初回ログインでも行が二重に作られることはない。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はユーザーのemail・表示名・アバターURLを最新プロフィールで更新する。
	// 内部IDは変更されない。
	UpdateProfile(ctx context.Context, id, email, name, avatarURL string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ItemRepository はアイテムデータの永続化インターフェース。
type ItemRepository interface {
	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// List は全アイテムを所有者情報付きで作成日時の降順で返す。
	// searchが空でない場合は名前・説明・保管場所・所有者名の部分一致で絞り込む。
	List(ctx context.Context, search string) ([]model.ItemWithOwner, error)

	// Create はアイテムを作成する。
	Create(ctx context.Context, item *model.Item) error

	// Update はアイテムの内容を更新し、updated_atを現在時刻にする。
	Update(ctx context.Context, item *model.Item) error

	// DeleteByID は指定IDのアイテムを削除する。
	DeleteByID(ctx context.Context, id string) error
}
