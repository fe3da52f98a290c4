package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/propsdb/internal/item"
	"github.com/hitoshi/propsdb/internal/middleware"
	"github.com/hitoshi/propsdb/internal/model"
)

// --- モック定義 ---

type mockItemService struct {
	listFn   func(ctx context.Context, viewerID, search string) ([]item.View, error)
	createFn func(ctx context.Context, ownerID string, input item.Input) (*model.Item, error)
	updateFn func(ctx context.Context, requesterID, itemID string, input item.Input) (*model.Item, error)
	deleteFn func(ctx context.Context, requesterID, itemID string) error
}

func (m *mockItemService) List(ctx context.Context, viewerID, search string) ([]item.View, error) {
	if m.listFn != nil {
		return m.listFn(ctx, viewerID, search)
	}
	return nil, nil
}

func (m *mockItemService) Create(ctx context.Context, ownerID string, input item.Input) (*model.Item, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, input)
	}
	return nil, nil
}

func (m *mockItemService) Update(ctx context.Context, requesterID, itemID string, input item.Input) (*model.Item, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, requesterID, itemID, input)
	}
	return nil, nil
}

func (m *mockItemService) Delete(ctx context.Context, requesterID, itemID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requesterID, itemID)
	}
	return nil
}

var _ ItemServiceInterface = (*mockItemService)(nil) // compile-time interface check

// mockUploadStore はハンドラーテスト用のインメモリストア。
type mockUploadStore struct {
	saveFn  func(originalName string, r io.Reader) (string, error)
	saved   []string
	removed []string
}

func (m *mockUploadStore) Save(originalName string, r io.Reader) (string, error) {
	if m.saveFn != nil {
		name, err := m.saveFn(originalName, r)
		if err == nil {
			m.saved = append(m.saved, name)
		}
		return name, err
	}
	m.saved = append(m.saved, originalName)
	return originalName, nil
}

func (m *mockUploadStore) Remove(filename string) error {
	m.removed = append(m.removed, filename)
	return nil
}

func (m *mockUploadStore) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

// --- テストヘルパー ---

// newMultipartRequest はアイテムフォームのマルチパートリクエストを組み立てる。
// imageNameが空の場合は画像パートを付けない。
func newMultipartRequest(t *testing.T, method, target string, fields map[string]string, imageName string, imageData []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if imageName != "" {
		fw, err := mw.CreateFormFile("image", imageName)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(imageData); err != nil {
			t.Fatalf("failed to write image data: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// asUser はリクエストにログインユーザーIDを注入する。
func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// withItemIDParam はchiのURLパラメータ{id}を注入したリクエストを返す。
func withItemIDParam(req *http.Request, itemID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", itemID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// --- テスト ---

func TestItemHandler_List_Anonymous_ReturnsItemsWithoutOwnership(t *testing.T) {
	svc := &mockItemService{
		listFn: func(ctx context.Context, viewerID, search string) ([]item.View, error) {
			if viewerID != "" {
				t.Errorf("viewerID = %q, want empty for anonymous viewer", viewerID)
			}
			return []item.View{
				{
					ID:        "item-1",
					Name:      "燭台",
					Location:  "倉庫A",
					OwnerName: "田中",
					IsOwner:   false,
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				},
			}, nil
		},
	}
	h := NewItemHandler(svc, &mockUploadStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Items []itemResponse `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(body.Items))
	}
	if body.Items[0].Name != "燭台" {
		t.Errorf("item name = %q, want %q", body.Items[0].Name, "燭台")
	}
	if body.Items[0].IsOwner {
		t.Error("is_owner should be false for anonymous viewer")
	}
}

func TestItemHandler_List_PassesViewerAndSearch(t *testing.T) {
	var gotViewer, gotSearch string
	svc := &mockItemService{
		listFn: func(ctx context.Context, viewerID, search string) ([]item.View, error) {
			gotViewer = viewerID
			gotSearch = search
			return nil, nil
		},
	}
	h := NewItemHandler(svc, &mockUploadStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/items?search=衣装", nil)
	req = asUser(req, "user-42")
	w := httptest.NewRecorder()

	h.List(w, req)

	if gotViewer != "user-42" {
		t.Errorf("viewerID = %q, want %q", gotViewer, "user-42")
	}
	if gotSearch != "衣装" {
		t.Errorf("search = %q, want %q", gotSearch, "衣装")
	}
}

func TestItemHandler_Create_WithImage_Returns201(t *testing.T) {
	var gotInput item.Input
	svc := &mockItemService{
		createFn: func(ctx context.Context, ownerID string, input item.Input) (*model.Item, error) {
			if ownerID != "user-1" {
				t.Errorf("ownerID = %q, want %q", ownerID, "user-1")
			}
			gotInput = input
			return &model.Item{
				ID:        "item-new",
				Name:      input.Name,
				Location:  input.Location,
				ImagePath: input.ImagePath,
				OwnerID:   ownerID,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		},
	}
	store := &mockUploadStore{
		saveFn: func(originalName string, r io.Reader) (string, error) {
			return "1700000000_abc.png", nil
		},
	}
	rec := &mockMetrics{}
	h := NewItemHandler(svc, store, rec)

	req := newMultipartRequest(t, http.MethodPost, "/api/items", map[string]string{
		"name":     "王冠",
		"location": "小道具室",
	}, "crown.png", []byte("png-bytes"))
	req = asUser(req, "user-1")
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if gotInput.Name != "王冠" {
		t.Errorf("input name = %q, want %q", gotInput.Name, "王冠")
	}
	if gotInput.ImagePath != "1700000000_abc.png" {
		t.Errorf("input image path = %q, want stored filename", gotInput.ImagePath)
	}
	if len(rec.mutations) != 1 || rec.mutations[0] != "create" {
		t.Errorf("mutation metrics = %v, want [create]", rec.mutations)
	}

	var body itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != "item-new" {
		t.Errorf("item id = %q, want %q", body.ID, "item-new")
	}
	if !body.IsOwner {
		t.Error("creator should own the new item")
	}
}

func TestItemHandler_Create_WithoutImage_OK(t *testing.T) {
	svc := &mockItemService{
		createFn: func(ctx context.Context, ownerID string, input item.Input) (*model.Item, error) {
			if input.ImagePath != "" {
				t.Errorf("image path = %q, want empty", input.ImagePath)
			}
			return &model.Item{ID: "item-no-image", Name: input.Name, OwnerID: ownerID}, nil
		},
	}
	store := &mockUploadStore{}
	h := NewItemHandler(svc, store, nil)

	req := newMultipartRequest(t, http.MethodPost, "/api/items", map[string]string{
		"name":     "帽子",
		"location": "棚B",
	}, "", nil)
	req = asUser(req, "user-1")
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if len(store.saved) != 0 {
		t.Errorf("saved files = %v, want none", store.saved)
	}
}

func TestItemHandler_Create_Unauthenticated_Returns401(t *testing.T) {
	called := false
	svc := &mockItemService{
		createFn: func(ctx context.Context, ownerID string, input item.Input) (*model.Item, error) {
			called = true
			return nil, nil
		},
	}
	h := NewItemHandler(svc, &mockUploadStore{}, nil)

	req := newMultipartRequest(t, http.MethodPost, "/api/items", map[string]string{"name": "傘"}, "", nil)
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if called {
		t.Error("service must not be called without authentication")
	}
}

func TestItemHandler_Create_ServiceError_RemovesOrphanedImage(t *testing.T) {
	svc := &mockItemService{
		createFn: func(ctx context.Context, ownerID string, input item.Input) (*model.Item, error) {
			return nil, model.NewValidationError("名前は必須です")
		},
	}
	store := &mockUploadStore{
		saveFn: func(originalName string, r io.Reader) (string, error) {
			return "1700000000_orphan.png", nil
		},
	}
	h := NewItemHandler(svc, store, nil)

	req := newMultipartRequest(t, http.MethodPost, "/api/items", map[string]string{
		"location": "棚C",
	}, "photo.png", []byte("png-bytes"))
	req = asUser(req, "user-1")
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	// 登録に失敗した場合は保存済み画像を残さない
	if len(store.removed) != 1 || store.removed[0] != "1700000000_orphan.png" {
		t.Errorf("removed files = %v, want the orphaned image", store.removed)
	}
}

func TestItemHandler_Create_InvalidImage_Returns400(t *testing.T) {
	svc := &mockItemService{}
	store := &mockUploadStore{
		saveFn: func(originalName string, r io.Reader) (string, error) {
			return "", model.NewInvalidImageError()
		},
	}
	h := NewItemHandler(svc, store, nil)

	req := newMultipartRequest(t, http.MethodPost, "/api/items", map[string]string{
		"name": "台本",
	}, "script.exe", []byte("mz"))
	req = asUser(req, "user-1")
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeInvalidImage {
		t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeInvalidImage)
	}
}

func TestItemHandler_Update_Owner_Returns200(t *testing.T) {
	svc := &mockItemService{
		updateFn: func(ctx context.Context, requesterID, itemID string, input item.Input) (*model.Item, error) {
			if requesterID != "owner-1" {
				t.Errorf("requesterID = %q, want %q", requesterID, "owner-1")
			}
			if itemID != "item-7" {
				t.Errorf("itemID = %q, want %q", itemID, "item-7")
			}
			return &model.Item{ID: itemID, Name: input.Name, OwnerID: requesterID}, nil
		},
	}
	rec := &mockMetrics{}
	h := NewItemHandler(svc, &mockUploadStore{}, rec)

	req := newMultipartRequest(t, http.MethodPut, "/api/items/item-7", map[string]string{
		"name":     "改名後の小道具",
		"location": "棚A",
	}, "", nil)
	req = asUser(req, "owner-1")
	req = withItemIDParam(req, "item-7")
	w := httptest.NewRecorder()

	h.Update(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if len(rec.mutations) != 1 || rec.mutations[0] != "update" {
		t.Errorf("mutation metrics = %v, want [update]", rec.mutations)
	}
}

func TestItemHandler_Update_NotOwner_Returns403(t *testing.T) {
	svc := &mockItemService{
		updateFn: func(ctx context.Context, requesterID, itemID string, input item.Input) (*model.Item, error) {
			return nil, model.NewNotOwnerError()
		},
	}
	rec := &mockMetrics{}
	h := NewItemHandler(svc, &mockUploadStore{}, rec)

	req := newMultipartRequest(t, http.MethodPut, "/api/items/item-7", map[string]string{
		"name": "乗っ取り",
	}, "", nil)
	req = asUser(req, "intruder")
	req = withItemIDParam(req, "item-7")
	w := httptest.NewRecorder()

	h.Update(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeNotOwner {
		t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeNotOwner)
	}
	if len(rec.mutations) != 0 {
		t.Error("mutation metrics must not be recorded on denial")
	}
}

func TestItemHandler_Update_NotFound_Returns404(t *testing.T) {
	svc := &mockItemService{
		updateFn: func(ctx context.Context, requesterID, itemID string, input item.Input) (*model.Item, error) {
			return nil, model.NewItemNotFoundError(itemID)
		},
	}
	h := NewItemHandler(svc, &mockUploadStore{}, nil)

	req := newMultipartRequest(t, http.MethodPut, "/api/items/missing", map[string]string{
		"name": "幻",
	}, "", nil)
	req = asUser(req, "user-1")
	req = withItemIDParam(req, "missing")
	w := httptest.NewRecorder()

	h.Update(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestItemHandler_Delete_Owner_Returns204(t *testing.T) {
	var deleted string
	svc := &mockItemService{
		deleteFn: func(ctx context.Context, requesterID, itemID string) error {
			deleted = itemID
			return nil
		},
	}
	rec := &mockMetrics{}
	h := NewItemHandler(svc, &mockUploadStore{}, rec)

	req := httptest.NewRequest(http.MethodDelete, "/api/items/item-9", nil)
	req = asUser(req, "owner-1")
	req = withItemIDParam(req, "item-9")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if deleted != "item-9" {
		t.Errorf("deleted item = %q, want %q", deleted, "item-9")
	}
	if len(rec.mutations) != 1 || rec.mutations[0] != "delete" {
		t.Errorf("mutation metrics = %v, want [delete]", rec.mutations)
	}
}

func TestItemHandler_Delete_NotOwner_Returns403(t *testing.T) {
	svc := &mockItemService{
		deleteFn: func(ctx context.Context, requesterID, itemID string) error {
			return model.NewNotOwnerError()
		},
	}
	h := NewItemHandler(svc, &mockUploadStore{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/items/item-9", nil)
	req = asUser(req, "intruder")
	req = withItemIDParam(req, "item-9")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestItemHandler_Delete_Unauthenticated_Returns401(t *testing.T) {
	h := NewItemHandler(&mockItemService{}, &mockUploadStore{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/items/item-9", nil)
	req = withItemIDParam(req, "item-9")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
