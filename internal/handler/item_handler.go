package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/propsdb/internal/item"
	"github.com/hitoshi/propsdb/internal/metrics"
	"github.com/hitoshi/propsdb/internal/middleware"
	"github.com/hitoshi/propsdb/internal/model"
	"github.com/hitoshi/propsdb/internal/upload"
)

// maxMultipartMemory はマルチパートフォームのメモリ上限。超過分は一時ファイルに落ちる。
const maxMultipartMemory = 32 << 20

// ItemServiceInterface はアイテムハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	List(ctx context.Context, viewerID, search string) ([]item.View, error)
	Create(ctx context.Context, ownerID string, input item.Input) (*model.Item, error)
	Update(ctx context.Context, requesterID, itemID string, input item.Input) (*model.Item, error)
	Delete(ctx context.Context, requesterID, itemID string) error
}

// ItemHandler はアイテムCRUDのHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
	store   upload.Store
	metrics metrics.MetricsCollector
}

// NewItemHandler はItemHandlerを生成する。collectorはnil可。
func NewItemHandler(service ItemServiceInterface, store upload.Store, collector metrics.MetricsCollector) *ItemHandler {
	return &ItemHandler{
		service: service,
		store:   store,
		metrics: collector,
	}
}

// itemResponse はアイテムのレスポンス形式。
type itemResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	ImagePath    string    `json:"image_path"`
	OwnerName    string    `json:"owner_name,omitempty"`
	OwnerContact string    `json:"owner_contact,omitempty"`
	OwnerAvatar  string    `json:"owner_avatar,omitempty"`
	IsOwner      bool      `json:"is_owner"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// List はアイテム一覧を返す。
// GET /api/items?search=xxx
// 未ログインでも閲覧できる。ログイン中はis_ownerが閲覧者視点で付く。
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	// セッションがあれば閲覧者IDが入っている。未ログインなら空のまま。
	viewerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		viewerID = ""
	}
	search := r.URL.Query().Get("search")

	views, err := h.service.List(r.Context(), viewerID, search)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]itemResponse, 0, len(views))
	for _, v := range views {
		items = append(items, itemResponse{
			ID:           v.ID,
			Name:         v.Name,
			Description:  v.Description,
			Location:     v.Location,
			ImagePath:    v.ImagePath,
			OwnerName:    v.OwnerName,
			OwnerContact: v.OwnerContact,
			OwnerAvatar:  v.OwnerAvatar,
			IsOwner:      v.IsOwner,
			CreatedAt:    v.CreatedAt,
			UpdatedAt:    v.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
}

// Create はアイテムを登録する。
// POST /api/items（multipart/form-data、画像は任意）
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthenticatedError())
		return
	}

	input, saved, err := h.parseItemForm(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		// バリデーション失敗などで保存済み画像が宙に浮かないよう掃除する
		h.discardSavedImage(saved)
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordItemMutation("create")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(itemResponse{
		ID:          created.ID,
		Name:        created.Name,
		Description: created.Description,
		Location:    created.Location,
		ImagePath:   created.ImagePath,
		IsOwner:     true,
		CreatedAt:   created.CreatedAt,
		UpdatedAt:   created.UpdatedAt,
	})
}

// Update はアイテムを更新する。所有者のみ。
// PUT /api/items/{id}（multipart/form-data、画像は任意）
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthenticatedError())
		return
	}
	itemID := chi.URLParam(r, "id")

	input, saved, err := h.parseItemForm(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, itemID, input)
	if err != nil {
		h.discardSavedImage(saved)
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordItemMutation("update")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(itemResponse{
		ID:          updated.ID,
		Name:        updated.Name,
		Description: updated.Description,
		Location:    updated.Location,
		ImagePath:   updated.ImagePath,
		IsOwner:     true,
		CreatedAt:   updated.CreatedAt,
		UpdatedAt:   updated.UpdatedAt,
	})
}

// Delete はアイテムを削除する。所有者のみ。
// DELETE /api/items/{id}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthenticatedError())
		return
	}
	itemID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, itemID); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordItemMutation("delete")
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseItemForm はマルチパートフォームからアイテム入力と画像を読み取る。
// 画像が添付されていればストレージに保存し、保存後のファイル名を返す。
// 戻り値savedは呼び出し側がサービス失敗時の掃除に使う。
func (h *ItemHandler) parseItemForm(r *http.Request) (item.Input, string, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return item.Input{}, "", model.NewValidationError("リクエストの形式が正しくありません")
		}
		// 画像なしの通常フォームも受け付ける
		if parseErr := r.ParseForm(); parseErr != nil {
			return item.Input{}, "", model.NewValidationError("リクエストの形式が正しくありません")
		}
	}

	input := item.Input{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return input, "", nil
		}
		return item.Input{}, "", model.NewValidationError("画像の読み取りに失敗しました")
	}
	defer file.Close()

	filename, err := h.store.Save(header.Filename, file)
	if err != nil {
		return item.Input{}, "", err
	}
	input.ImagePath = filename
	return input, filename, nil
}

// discardSavedImage は保存済みの画像を削除する。失敗してもログに残すだけ。
func (h *ItemHandler) discardSavedImage(filename string) {
	if filename == "" {
		return
	}
	if err := h.store.Remove(filename); err != nil {
		slog.Warn("failed to remove orphaned image",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	}
}
