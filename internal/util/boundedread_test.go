package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBoundedReadTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	data := strings.Repeat("a", MaxReadBytes+500)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	content, truncated, err := BoundedRead(path)
	if err != nil {
		t.Fatalf("BoundedRead: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncated=true")
	}
	if len(content) != MaxReadBytes {
		t.Fatalf("len(content) = %d, want %d", len(content), MaxReadBytes)
	}
}

func TestBoundedReadUnderLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	content, truncated, err := BoundedRead(path)
	if err != nil {
		t.Fatalf("BoundedRead: %v", err)
	}
	if truncated {
		t.Fatal("expected truncated=false")
	}
	if content != "hello" {
		t.Fatalf("content = %q", content)
	}
}

func TestContainPathRejectsEscape(t *testing.T) {
	root := t.TempDir()
	if _, err := ContainPath(root, "../../etc/passwd"); err != ErrInvalidPath {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestContainPathAllowsDescendant(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	resolved, err := ContainPath(root, "sub/file.txt")
	if err != nil {
		t.Fatalf("ContainPath: %v", err)
	}
	if !strings.HasPrefix(resolved, root) {
		t.Fatalf("resolved path %q escaped root %q", resolved, root)
	}
}

func TestAtomicWriteFileThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.json")
	if err := AtomicWriteFile(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}
