package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/propsdb/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	item := &model.Item{}
	var imagePath sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, location, image_path, owner_id, created_at, updated_at
		 FROM items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.Name, &item.Description, &item.Location, &imagePath,
		&item.OwnerID, &item.CreatedAt, &item.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}
	item.ImagePath = imagePath.String

	return item, nil
}

// List は全アイテムを所有者情報付きで作成日時の降順で返す。
// searchが空でない場合は名前・説明・保管場所・所有者名のILIKE部分一致で絞り込む。
func (r *PostgresItemRepo) List(ctx context.Context, search string) ([]model.ItemWithOwner, error) {
	query := `
		SELECT items.id, items.name, items.description, items.location, items.image_path,
		       items.owner_id, items.created_at, items.updated_at,
		       users.name AS owner_name, users.email AS owner_contact,
		       COALESCE(users.avatar_url, '') AS owner_avatar
		FROM items
		JOIN users ON items.owner_id = users.id`

	var rows *sql.Rows
	var err error
	if search != "" {
		query += `
		WHERE items.name ILIKE $1 OR items.description ILIKE $1
		   OR items.location ILIKE $1 OR users.name ILIKE $1
		ORDER BY items.created_at DESC`
		rows, err = r.db.QueryContext(ctx, query, "%"+search+"%")
	} else {
		query += `
		ORDER BY items.created_at DESC`
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var results []model.ItemWithOwner
	for rows.Next() {
		var row model.ItemWithOwner
		var imagePath sql.NullString
		if err := rows.Scan(
			&row.ID, &row.Name, &row.Description, &row.Location, &imagePath,
			&row.OwnerID, &row.CreatedAt, &row.UpdatedAt,
			&row.OwnerName, &row.OwnerContact, &row.OwnerAvatar,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		row.ImagePath = imagePath.String
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item rows: %w", err)
	}

	return results, nil
}

// Create はアイテムを作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, name, description, location, image_path, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
		item.ID, item.Name, item.Description, item.Location, item.ImagePath,
		item.OwnerID, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// Update はアイテムの内容を更新する。owner_idは変更しない。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items
		 SET name = $2, description = $3, location = $4, image_path = NULLIF($5, ''), updated_at = now()
		 WHERE id = $1`,
		item.ID, item.Name, item.Description, item.Location, item.ImagePath,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのアイテムを削除する。
func (r *PostgresItemRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
