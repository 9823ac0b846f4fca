package fs

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, []byte("audio bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewOSFile(path)
	if f.Name() != "song.mp3" {
		t.Errorf("Name() = %q, want song.mp3", f.Name())
	}
	if !f.Exists() {
		t.Error("Exists() = false for existing file")
	}
	if f.Length() != int64(len("audio bytes")) {
		t.Errorf("Length() = %d, want %d", f.Length(), len("audio bytes"))
	}
	if f.LastModified() == 0 {
		t.Error("LastModified() = 0 for existing file")
	}

	rc, err := f.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(data) != "audio bytes" {
		t.Errorf("content = %q", data)
	}

	// Metadata is fresh, not snapshotted.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if f.Exists() {
		t.Error("Exists() = true after removal")
	}
	if f.Length() != 0 || f.LastModified() != 0 {
		t.Error("metadata nonzero after removal")
	}
}

func TestOSFile_DirectoryIsNotRegular(t *testing.T) {
	f := NewOSFile(t.TempDir())
	if f.Exists() {
		t.Error("Exists() = true for a directory")
	}
}
