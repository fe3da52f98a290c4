package upload

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/propsdb/internal/model"
)

func newTestStore(t *testing.T) *diskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	return store
}

func TestSave_GeneratesUniqueNames(t *testing.T) {
	store := newTestStore(t)

	name1, err := store.Save("photo.png", strings.NewReader("image-data-1"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	name2, err := store.Save("photo.png", strings.NewReader("image-data-2"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if name1 == name2 {
		t.Errorf("expected unique filenames, both are %q", name1)
	}
	if !strings.HasSuffix(name1, ".png") {
		t.Errorf("filename %q should keep the .png extension", name1)
	}
	// クライアント由来の名前をそのまま使わないこと
	if name1 == "photo.png" {
		t.Error("stored name must not be the original filename")
	}
}

func TestSave_WritesContent(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save("prop.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	f, err := store.Open(name)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("stored content = %q, want %q", data, "jpeg-bytes")
	}
}

func TestSave_RejectsDisallowedExtensions(t *testing.T) {
	store := newTestStore(t)

	tests := []string{"malware.exe", "page.html", "script.js", "archive.zip", "noext"}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := store.Save(name, strings.NewReader("data"))
			if err == nil {
				t.Fatalf("expected error for %q", name)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Code != "INVALID_IMAGE" {
				t.Errorf("error code = %q, want %q", apiErr.Code, "INVALID_IMAGE")
			}
		})
	}
}

func TestSave_UppercaseExtensionAllowed(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save("PHOTO.PNG", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("filename %q should have lowercased extension", name)
	}
}

func TestSave_RejectsOversizedFile(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	_, err = store.Save("big.png", strings.NewReader("0123456789ABC"))
	if err == nil {
		t.Fatal("expected error for oversized file")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != "VALIDATION_FAILED" {
		t.Errorf("error code = %q, want %q", apiErr.Code, "VALIDATION_FAILED")
	}

	// 途中まで書いたファイルが残らないこと
	entries, err := os.ReadDir(store.dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover files, found %d", len(entries))
	}
}

func TestRemove_DeletesFile(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save("prop.gif", strings.NewReader("gif-data"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(store.dir, name)); !os.IsNotExist(err) {
		t.Error("expected file to be removed")
	}
}

func TestRemove_MissingFileIsNotAnError(t *testing.T) {
	store := newTestStore(t)

	if err := store.Remove("1700000000_deadbeef.png"); err != nil {
		t.Errorf("Remove() of missing file error = %v, want nil", err)
	}
}

func TestResolve_RejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)

	tests := []string{
		"../secret.png",
		"../../etc/passwd",
		"sub/dir.png",
		"/etc/passwd",
		".",
		"..",
		"",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Open(name); err == nil {
				t.Errorf("Open(%q) should fail", name)
			}
		})
	}
}
