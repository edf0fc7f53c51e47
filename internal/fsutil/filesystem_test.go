package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteAppendRead(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "log.csv")

	if err := fsys.AppendFile(path, []byte("a\n"), 0o644); err != nil {
		t.Fatalf("AppendFile failed: %v", err)
	}
	if err := fsys.AppendFile(path, []byte("b\n"), 0o644); err != nil {
		t.Fatalf("AppendFile failed: %v", err)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Errorf("got %q, want %q", data, "a\nb\n")
	}

	if err := fsys.WriteFile(path, []byte("c\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, _ = fsys.ReadFile(path)
	if string(data) != "c\n" {
		t.Errorf("after WriteFile got %q, want %q", data, "c\n")
	}
	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("WriteFile left %d entries behind, want 1", len(entries))
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// callers cannot mutate stored data through either slice
	testData[0] = 'J'
	data[1] = 'E'
	again, _ := mfs.ReadFile("/test.txt")
	if string(again) != "hello, world" {
		t.Errorf("stored data changed: %q", again)
	}
}

func TestMemoryFileSystem_Append(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("data", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"x\n", "y\n"} {
		if err := mfs.AppendFile("data/out.csv", []byte(line), 0o644); err != nil {
			t.Fatalf("AppendFile failed: %v", err)
		}
	}
	data, _ := mfs.ReadFile("data/out.csv")
	if string(data) != "x\ny\n" {
		t.Errorf("got %q", data)
	}
}

func TestMemoryFileSystem_MissingParent(t *testing.T) {
	mfs := NewMemoryFileSystem()
	err := mfs.AppendFile("nowhere/out.csv", []byte("x"), 0o644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("AppendFile error = %v, want ErrNotExist", err)
	}
	err = mfs.WriteFile("nowhere/out.csv", []byte("x"), 0o644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("WriteFile error = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_Stat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.MkdirAll("/a/b", 0o755)
	mfs.WriteFile("/a/b/f.txt", []byte("12345"), 0o644)

	info, err := mfs.Stat("/a/b/f.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "f.txt" || info.Size() != 5 || info.IsDir() {
		t.Errorf("unexpected file info: %s %d %v", info.Name(), info.Size(), info.IsDir())
	}

	info, err = mfs.Stat("/a")
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if !info.IsDir() || !info.Mode().IsDir() {
		t.Error("expected /a to be a directory")
	}

	if _, err := mfs.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat missing error = %v", err)
	}
}

func TestMemoryFileSystem_MkdirAllOverFile(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("data", []byte("not a dir"), 0o644)
	if err := mfs.MkdirAll("data/sub", 0o755); err == nil {
		t.Error("expected MkdirAll through a file to fail")
	}
}

func TestMemoryFileSystem_PathCleaning(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.MkdirAll("/a", 0o755)
	mfs.WriteFile("/a/./b/../c.txt", []byte("x"), 0o644)

	if !mfs.Exists("/a/c.txt") {
		t.Error("expected cleaned path to exist")
	}
	if got := mfs.Files("/a"); len(got) != 1 || got[0] != "/a/c.txt" {
		t.Errorf("Files(/a) = %v", got)
	}
}
