package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/propsdb/internal/model"
)

// PostgresIdentityRepo は外部IdP紐付け情報のPostgreSQL実装。
// identity行の作成はユーザー作成と同一トランザクションで行う必要があるため
// PostgresUserRepo.CreateWithIdentity側にあり、このリポジトリは参照のみを担う。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID は(provider, provider_user_id)の組でidentityを検索する。
// この組はDB上の一意制約で保護されており、結果は高々1件。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	const query = `SELECT id, user_id, provider, provider_user_id, created_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`

	identity := &model.Identity{}
	err := r.db.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&identity.ID,
		&identity.UserID,
		&identity.Provider,
		&identity.ProviderUserID,
		&identity.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return identity, nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
