package handler

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/propsdb/internal/model"
	"github.com/hitoshi/propsdb/internal/upload"
)

// UploadHandler はアップロード済み画像の配信ハンドラー。
type UploadHandler struct {
	store upload.Store
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(store upload.Store) *UploadHandler {
	return &UploadHandler{store: store}
}

// Serve は保存済み画像を返す。
// GET /uploads/{filename}
// パストラバーサルはストレージ層で拒否される。
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	f, err := h.store.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		// パス検証に失敗したリクエストもここに落ちる
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidImageError())
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 拡張子は保存時に検証済み。Content-TypeはServeContentの推定に任せる。
	http.ServeContent(w, r, filename, stat.ModTime(), f)
}
