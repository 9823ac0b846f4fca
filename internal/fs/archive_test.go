package fs

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "media.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range entries {
		hdr := &zip.FileHeader{Name: name, Modified: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		if strings.HasSuffix(name, "/") {
			hdr.SetMode(os.ModeDir | 0755)
		}
		ew, err := w.CreateHeader(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ew.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListArchive(t *testing.T) {
	path := writeTestArchive(t, map[string]string{
		"album/":          "",
		"album/track.mp3": "audio",
		"cover.jpg":       "image",
	})

	entries, err := ListArchive(path)
	if err != nil {
		t.Fatalf("ListArchive() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListArchive() = %d entries, want 2 (dirs skipped)", len(entries))
	}

	if _, err := ListArchive(filepath.Join(t.TempDir(), "none.zip")); err == nil {
		t.Error("ListArchive() succeeded for missing archive")
	}
}

func TestArchiveEntry(t *testing.T) {
	path := writeTestArchive(t, map[string]string{"album/track.mp3": "audio bytes"})
	e := NewArchiveEntry(path, "album/track.mp3")

	if e.Name() != "track.mp3" {
		t.Errorf("Name() = %q, want track.mp3", e.Name())
	}
	if got, want := e.Path(), path+"!/album/track.mp3"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if !e.Exists() {
		t.Error("Exists() = false")
	}
	if e.Length() != int64(len("audio bytes")) {
		t.Errorf("Length() = %d, want %d", e.Length(), len("audio bytes"))
	}
	if e.LastModified() == 0 {
		t.Error("LastModified() = 0")
	}

	rc, err := e.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading entry: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if string(data) != "audio bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestArchiveEntry_Gone(t *testing.T) {
	path := writeTestArchive(t, map[string]string{"track.mp3": "audio"})

	missing := NewArchiveEntry(path, "other.mp3")
	if missing.Exists() {
		t.Error("Exists() = true for absent entry")
	}
	if _, err := missing.Open(); err == nil {
		t.Error("Open() succeeded for absent entry")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	e := NewArchiveEntry(path, "track.mp3")
	if e.Exists() {
		t.Error("Exists() = true after archive removal")
	}
	if e.Length() != 0 || e.LastModified() != 0 {
		t.Error("metadata nonzero after archive removal")
	}
}

func TestIsArchive(t *testing.T) {
	if !IsArchive("media.zip") {
		t.Error("IsArchive(media.zip) = false")
	}
	if IsArchive("media.rar") || IsArchive("movie.mp4") {
		t.Error("IsArchive() matched unsupported extension")
	}
}
