package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	fileconfig "github.com/sandvm/v1/internal/config/storage/file"
	infralog "github.com/sandvm/v1/internal/core/infrastructure/log"
)

func newTestStore(t *testing.T, verify bool) (*Store, string) {
	t.Helper()

	tmp, err := os.MkdirTemp("", "sandvm-filestore-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmp) })

	cfg := fileconfig.NewFromOptions(&fileconfig.FileOptions{
		RootPath:                filepath.Join(tmp, "files"),
		MaxFileSize:             1024, // MB
		FileVerificationEnabled: verify,
		FilePermissions:         0600,
		DirectoryPermissions:    0700,
	})

	store := New(cfg, infralog.GetLogger())
	if store == nil {
		t.Fatalf("New store returned nil")
	}
	return store.(*Store), tmp
}

func TestFileStore_PathGuards(t *testing.T) {
	ctx := context.Background()
	store, tmp := newTestStore(t, false)

	// 常规相对路径读写
	if err := store.MakeDir(ctx, "replay/ab", true); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}
	if err := store.Save(ctx, "replay/ab/abcd.json.sz", []byte("ok")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if b, err := store.Load(ctx, "replay/ab/abcd.json.sz"); err != nil || string(b) != "ok" {
		t.Fatalf("Load got=%q err=%v", string(b), err)
	}

	// 禁止 ../ 越界
	if _, err := store.Load(ctx, "../replay/ab/abcd.json.sz"); err == nil {
		t.Fatalf("expected error for ../ traversal, got nil")
	}

	// 禁止绝对路径绕过
	if _, err := store.Load(ctx, filepath.Join(tmp, "files", "replay", "ab", "abcd.json.sz")); err == nil {
		t.Fatalf("expected error for absolute path, got nil")
	}

	// 禁止空路径和 "."
	if _, err := store.Load(ctx, ""); err == nil {
		t.Fatalf("expected error for empty path, got nil")
	}
	if _, err := store.Load(ctx, "."); err == nil {
		t.Fatalf("expected error for dot path, got nil")
	}
}

func TestFileStore_OverwriteAndList(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, false)

	// 同路径写入为完整覆盖
	if err := store.Save(ctx, "snapshots/run.json", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "snapshots/run.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	b, err := store.Load(ctx, "snapshots/run.json")
	if err != nil || string(b) != `{"v":2}` {
		t.Fatalf("Load after overwrite got=%q err=%v", string(b), err)
	}

	if err := store.Save(ctx, "snapshots/other.txt", []byte("x")); err != nil {
		t.Fatalf("Save other: %v", err)
	}

	files, err := store.ListFiles(ctx, "snapshots", "*.json")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "run.json" {
		t.Fatalf("ListFiles pattern filter got=%v", files)
	}
}

func TestFileStore_ChecksumVerification(t *testing.T) {
	ctx := context.Background()
	store, tmp := newTestStore(t, true)

	if err := store.Save(ctx, "cache/entry.bin", []byte("payload")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// 校验和文件应当存在且被 ListFiles 过滤
	sumPath := filepath.Join(tmp, "files", "cache", "entry.bin.sha256")
	if _, err := os.Stat(sumPath); err != nil {
		t.Fatalf("checksum file missing: %v", err)
	}
	files, err := store.ListFiles(ctx, "cache", "")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected checksum file to be hidden, got %v", files)
	}

	// 篡改内容后应校验失败
	dataPath := filepath.Join(tmp, "files", "cache", "entry.bin")
	if err := os.WriteFile(dataPath, []byte("tampered"), 0600); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := store.Load(ctx, "cache/entry.bin"); err == nil {
		t.Fatalf("expected checksum mismatch error, got nil")
	}
}
