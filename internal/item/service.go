// Package item は小道具カタログの管理機能を提供する。
package item

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/propsdb/internal/model"
	"github.com/hitoshi/propsdb/internal/repository"
	"github.com/hitoshi/propsdb/internal/security"
)

// フィールド長の上限。DBのカラム定義と揃えている。
const (
	maxNameLength        = 200
	maxLocationLength    = 200
	maxDescriptionLength = 2000
)

// ImageRemover は保存済み画像ファイルの削除を行う。
type ImageRemover interface {
	// Remove は指定ファイル名の画像を削除する。存在しない場合はエラーにしない。
	Remove(filename string) error
}

// Input はアイテム登録・更新の入力。
// 更新時にImagePathが空の場合は既存の画像を維持する。
type Input struct {
	Name        string
	Description string
	Location    string
	ImagePath   string
}

// View はアイテム一覧・詳細のレスポンス用構造体。
// IsOwnerは閲覧者ごとに計算され、編集・削除UIの表示判定に使われる。
type View struct {
	ID           string
	Name         string
	Description  string
	Location     string
	ImagePath    string
	OwnerName    string
	OwnerContact string
	OwnerAvatar  string
	IsOwner      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Service はアイテムの一覧・登録・更新・削除のサービス。
// 変更系の操作はすべて所有者チェックを通る。
type Service struct {
	itemRepo  repository.ItemRepository
	sanitizer security.ContentSanitizerService
	images    ImageRemover
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	itemRepo repository.ItemRepository,
	sanitizer security.ContentSanitizerService,
	images ImageRemover,
) *Service {
	return &Service{
		itemRepo:  itemRepo,
		sanitizer: sanitizer,
		images:    images,
	}
}

// List はアイテム一覧を所有者情報付きで作成日時の降順で返す。
// searchが空でない場合は名前・説明・保管場所・所有者名の部分一致で絞り込む。
// viewerIDは各アイテムのIsOwnerフラグの計算にのみ使われ、
// 空（未ログイン閲覧）でも一覧は全件返る。
func (s *Service) List(ctx context.Context, viewerID, search string) ([]View, error) {
	rows, err := s.itemRepo.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, View{
			ID:           row.ID,
			Name:         row.Name,
			Description:  row.Description,
			Location:     row.Location,
			ImagePath:    row.ImagePath,
			OwnerName:    row.OwnerName,
			OwnerContact: row.OwnerContact,
			OwnerAvatar:  row.OwnerAvatar,
			IsOwner:      viewerID != "" && viewerID == row.OwnerID,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return views, nil
}

// Create はアイテムを登録する。
// 所有者は必ずセッションから解決されたownerIDになり、リクエスト本文では指定できない。
func (s *Service) Create(ctx context.Context, ownerID string, input Input) (*model.Item, error) {
	if ownerID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	sanitized, err := s.sanitizeInput(input)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	item := &model.Item{
		ID:          uuid.New().String(),
		Name:        sanitized.Name,
		Description: sanitized.Description,
		Location:    sanitized.Location,
		ImagePath:   input.ImagePath,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	slog.Info("item created",
		slog.String("item_id", item.ID),
		slog.String("owner_id", ownerID),
	)
	return item, nil
}

// Update はアイテムを更新する。
// 所有者以外のリクエストはNOT_OWNERで拒否され、レコードは変更されない。
// 新しい画像が指定された場合は古い画像ファイルを削除する。所有者は変更されない。
func (s *Service) Update(ctx context.Context, requesterID, itemID string, input Input) (*model.Item, error) {
	existing, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if existing == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}

	if err := AuthorizeMutation(requesterID, existing.OwnerID); err != nil {
		return nil, err
	}

	sanitized, err := s.sanitizeInput(input)
	if err != nil {
		return nil, err
	}

	oldImage := existing.ImagePath

	existing.Name = sanitized.Name
	existing.Description = sanitized.Description
	existing.Location = sanitized.Location
	if input.ImagePath != "" {
		existing.ImagePath = input.ImagePath
	}
	existing.UpdatedAt = time.Now()

	if err := s.itemRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	// 置き換えられた古い画像を削除。失敗してもレコード更新は成立している。
	if input.ImagePath != "" && oldImage != "" && oldImage != input.ImagePath {
		if err := s.images.Remove(oldImage); err != nil {
			slog.Warn("failed to remove replaced image",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("item updated",
		slog.String("item_id", itemID),
		slog.String("owner_id", existing.OwnerID),
	)
	return existing, nil
}

// Delete はアイテムを削除する。
// 所有者以外のリクエストはNOT_OWNERで拒否され、レコードは削除されない。
// 画像ファイルも併せて削除される。
func (s *Service) Delete(ctx context.Context, requesterID, itemID string) error {
	existing, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to find item: %w", err)
	}
	if existing == nil {
		return model.NewItemNotFoundError(itemID)
	}

	if err := AuthorizeMutation(requesterID, existing.OwnerID); err != nil {
		return err
	}

	if err := s.itemRepo.DeleteByID(ctx, itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	if existing.ImagePath != "" {
		if err := s.images.Remove(existing.ImagePath); err != nil {
			slog.Warn("failed to remove item image",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("item deleted",
		slog.String("item_id", itemID),
		slog.String("owner_id", existing.OwnerID),
	)
	return nil
}

// sanitizeInput はテキストフィールドをサニタイズし、必須項目と長さを検証する。
func (s *Service) sanitizeInput(input Input) (Input, error) {
	input.Name = s.sanitizer.Sanitize(input.Name)
	input.Description = s.sanitizer.Sanitize(input.Description)
	input.Location = s.sanitizer.Sanitize(input.Location)

	if input.Name == "" {
		return Input{}, model.NewValidationError("名前は必須です")
	}
	if input.Location == "" {
		return Input{}, model.NewValidationError("保管場所は必須です")
	}
	if utf8.RuneCountInString(input.Name) > maxNameLength {
		return Input{}, model.NewValidationError("名前が長すぎます")
	}
	if utf8.RuneCountInString(input.Location) > maxLocationLength {
		return Input{}, model.NewValidationError("保管場所が長すぎます")
	}
	if utf8.RuneCountInString(input.Description) > maxDescriptionLength {
		return Input{}, model.NewValidationError("説明が長すぎます")
	}
	return input, nil
}
