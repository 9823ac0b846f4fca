package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func seedRecord(t *testing.T, store *memStore, path, id string) {
	t.Helper()
	tx, err := store.BeginWrite(context.Background())
	if err != nil {
		t.Fatalf("BeginWrite() error = %v", err)
	}
	rec := NewContentRecord(path, 1, 1, "hash-"+id).WithID(id)
	if err := tx.SaveRecord(rec); err != nil {
		t.Fatalf("SaveRecord() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestReconciler_MarksOnlyFullyGoneFiles(t *testing.T) {
	store := newMemStore()
	seedRecord(t, store, "/lib/in-tree.mp4", "id-tree")
	seedRecord(t, store, "/lib/on-disk.mp4", "id-disk")
	seedRecord(t, store, "/lib/gone.mp4", "id-gone")

	tree := newTestTree()
	node := treeNode("n1", tree.Root().ID(), "Movies", "video/movies")
	tree.AddNode(node)
	tree.AddItem(treeItem("id-tree", "n1", "in-tree", "/lib/in-tree.mp4", 1))

	r := NewReconciler(store, tree, NewNopLogger())
	r.SetExistsFunc(func(p string) bool { return p == "/lib/on-disk.mp4" })

	marked, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if marked != 1 {
		t.Errorf("Run() = %d, want 1", marked)
	}

	if rec, _ := store.record("/lib/gone.mp4"); !rec.Missing() {
		t.Error("fully gone file not marked missing")
	}
	if rec, _ := store.record("/lib/in-tree.mp4"); rec.Missing() {
		t.Error("file still in tree was marked missing")
	}
	if rec, _ := store.record("/lib/on-disk.mp4"); rec.Missing() {
		t.Error("file still on disk was marked missing")
	}
}

func TestReconciler_SecondRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	seedRecord(t, store, "/lib/gone.mp4", "id-gone")

	r := NewReconciler(store, newTestTree(), NewNopLogger())
	r.SetExistsFunc(noneExist)

	if marked, err := r.Run(context.Background()); err != nil || marked != 1 {
		t.Fatalf("first Run() = %d, %v, want 1, nil", marked, err)
	}
	if marked, err := r.Run(context.Background()); err != nil || marked != 0 {
		t.Errorf("second Run() = %d, %v, want 0, nil", marked, err)
	}
}

func TestReconciler_SparesLiveArchiveEntries(t *testing.T) {
	store := newMemStore()
	archive := filepath.Join(t.TempDir(), "lib.zip")
	writeZip(t, archive, map[string]string{"track.mp3": "audio"})
	entryPath := archive + ArchivePathSeparator + "track.mp3"
	seedRecord(t, store, entryPath, "id-entry")

	// Empty tree and the default liveness check, the way a standalone
	// sweep runs. The entry is on disk inside its archive and must be
	// spared.
	r := NewReconciler(store, newTestTree(), NewNopLogger())

	if marked, err := r.Run(context.Background()); err != nil || marked != 0 {
		t.Fatalf("Run() = %d, %v, want 0, nil", marked, err)
	}

	if err := os.Remove(archive); err != nil {
		t.Fatal(err)
	}
	if marked, err := r.Run(context.Background()); err != nil || marked != 1 {
		t.Fatalf("Run() after archive removal = %d, %v, want 1, nil", marked, err)
	}
	if rec, _ := store.record(entryPath); !rec.Missing() {
		t.Error("entry of removed archive not marked missing")
	}
}
