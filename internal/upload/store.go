// Package upload はアイテム画像のディスク保存機能を提供する。
package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/propsdb/internal/model"
)

// allowedExtensions は保存を許可する画像拡張子のセット。
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Store は画像ファイルの保存・削除・読み出しのインターフェース。
type Store interface {
	// Save は画像をストアに保存し、生成されたファイル名を返す。
	// 拡張子が許可リスト外の場合はINVALID_IMAGEエラーを返す。
	Save(originalName string, r io.Reader) (string, error)
	// Remove は指定ファイル名の画像を削除する。存在しない場合はエラーにしない。
	Remove(filename string) error
	// Open は指定ファイル名の画像を読み出し用に開く。
	Open(filename string) (*os.File, error)
}

// diskStore はStoreのローカルディスク実装。
// ファイル名は衝突しないようタイムスタンプとランダムIDから生成し、
// クライアント由来の名前はそのまま使わない。
type diskStore struct {
	dir     string
	maxSize int64
}

// NewDiskStore はdiskStoreを生成し、保存先ディレクトリを用意する。
// maxSizeは1ファイルあたりの上限バイト数。
func NewDiskStore(dir string, maxSize int64) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &diskStore{dir: dir, maxSize: maxSize}, nil
}

// Save は画像をストアに保存し、生成されたファイル名を返す。
func (s *diskStore) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", model.NewInvalidImageError()
	}

	filename := fmt.Sprintf("%d_%s%s", time.Now().Unix(), hexID(), ext)

	f, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	// 上限+1バイトまで読み、超過を検出する
	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(f.Name())
		return "", model.NewValidationError("画像ファイルが大きすぎます")
	}

	return filename, nil
}

// Remove は指定ファイル名の画像を削除する。
func (s *diskStore) Remove(filename string) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove upload file: %w", err)
	}
	return nil
}

// Open は指定ファイル名の画像を読み出し用に開く。
func (s *diskStore) Open(filename string) (*os.File, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// resolve はファイル名を検証し、ストア内の絶対パスに解決する。
// パス区切りや上位ディレクトリ参照を含む名前は拒否する。
func (s *diskStore) resolve(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Base(filepath.Clean(filename))
	if cleaned != filename || cleaned == "." || cleaned == ".." {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return filepath.Join(s.dir, cleaned), nil
}

// hexID はファイル名用のランダムIDを生成する。
func hexID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// compile-time interface check
var _ Store = (*diskStore)(nil)
