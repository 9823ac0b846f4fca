package media

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testFormatOf(name string) (Format, bool) {
	switch filepath.Ext(name) {
	case ".mp4":
		return FormatVideo, true
	case ".mp3":
		return FormatAudio, true
	case ".jpg":
		return FormatImage, true
	case ".srt":
		return FormatSubtitle, true
	}
	return "", false
}

// newTestService wires a service to a synchronous worker so resolution
// callbacks run before Resolve returns.
func newTestService(t *testing.T, root string) (*Service, *ContentTree, *memStore) {
	t.Helper()
	store := newMemStore()
	tree := newTestTree()
	w := NewWorker(store, &seqIDs{}, RealClock{}, NewNopLogger())
	w.SetExistsFunc(allExist)
	w.submit = func(fn func()) { fn() }
	resolver := NewPersistentResolver(w)
	svc := NewService(tree, resolver, store, nil, &seqIDs{n: 1000}, NewNopLogger(), root, testFormatOf)
	return svc, tree, store
}

func TestService_DefaultContainers(t *testing.T) {
	_, tree, _ := newTestService(t, "/lib")

	children := tree.Root().Children()
	if len(children) != 4 {
		t.Fatalf("root has %d containers, want 4", len(children))
	}
	for _, relPath := range []string{"video", "audio", "image", "recent"} {
		node := tree.GetNodeByPath(relPath)
		if node == nil {
			t.Errorf("no container registered for %q", relPath)
			continue
		}
		if !node.Protected() {
			t.Errorf("container %q not protected", relPath)
		}
	}
	// The recent container sorts to the end regardless of title.
	if last := children[len(children)-1]; last.Title() != "Recently Added" {
		t.Errorf("last container = %q, want Recently Added", last.Title())
	}
}

func TestService_FileFound(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	svc.FileFound(newFakeFile("/lib/shows/s1/ep1.mp4", "episode", 5000))
	svc.Drain()

	item := tree.GetItemByFilePath("/lib/shows/s1/ep1.mp4")
	if item == nil {
		t.Fatal("item not in tree after FileFound")
	}
	if item.Title() != "ep1" {
		t.Errorf("title = %q, want ep1 (extension stripped)", item.Title())
	}

	inner := tree.GetNodeByPath("video/shows/s1")
	if inner == nil {
		t.Fatal("directory chain not built")
	}
	if tree.GetNode(item.ParentID()) != inner {
		t.Error("item not parented to its directory node")
	}
	outer := tree.GetNodeByPath("video/shows")
	if outer == nil || tree.GetNode(inner.ParentID()) != outer {
		t.Error("directory chain not linked")
	}

	// Same event again: same resolver id, item already present.
	svc.FileFound(newFakeFile("/lib/shows/s1/ep1.mp4", "episode", 5000))
	svc.Drain()
	if got := len(inner.Items()); got != 1 {
		t.Errorf("items in directory = %d, want 1", got)
	}
}

func TestService_NonMediaIgnored(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	svc.FileFound(newFakeFile("/lib/notes.txt", "text", 5000))
	svc.Drain()

	if tree.GetItemByFilePath("/lib/notes.txt") != nil {
		t.Error("non-media file entered the tree")
	}
}

func TestService_SubtitleAttachesToStemMatch(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	svc.FileFound(newFakeFile("/lib/movies/alien.mp4", "movie", 5000))
	svc.Drain()
	movie := tree.GetItemByFilePath("/lib/movies/alien.mp4")
	if movie == nil {
		t.Fatal("movie not indexed")
	}

	svc.FileFound(newFakeFile("/lib/movies/alien.srt", "1\n00:00", 5001))
	svc.Drain()

	atts := movie.Attachments()
	if len(atts) != 1 {
		t.Fatalf("attachments = %d, want 1", len(atts))
	}
	if atts[0].Format() != FormatSubtitle {
		t.Errorf("attachment format = %q, want subtitle", atts[0].Format())
	}

	node := tree.GetNode(movie.ParentID())
	if got := len(node.Items()); got != 1 {
		t.Errorf("directory items = %d, want only the movie", got)
	}

	// A subtitle with no matching media file is dropped.
	svc.FileFound(newFakeFile("/lib/movies/orphan.srt", "x", 5002))
	svc.Drain()
	if tree.GetItemByFilePath("/lib/movies/orphan.srt") != nil {
		t.Error("orphan subtitle entered the tree")
	}
}

func TestService_ArtworkAttachesAndSetsArt(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	svc.FileFound(newFakeFile("/lib/movies/alien.mp4", "movie", 5000))
	svc.Drain()
	movie := tree.GetItemByFilePath("/lib/movies/alien.mp4")
	if movie == nil {
		t.Fatal("movie not indexed")
	}

	svc.FileFound(newFakeFile("/lib/movies/alien.jpg", "poster", 5001))
	svc.Drain()

	art := movie.Art()
	if art == nil {
		t.Fatal("movie has no art reference")
	}
	if art.Format() != FormatImage {
		t.Errorf("art format = %q, want image", art.Format())
	}
	if got := len(movie.Attachments()); got != 1 {
		t.Errorf("attachments = %d, want 1", got)
	}

	node := tree.GetNode(movie.ParentID())
	if node.Art() != art {
		t.Error("container did not adopt the artwork")
	}
	if got := len(node.Items()); got != 1 {
		t.Errorf("directory items = %d, want only the movie", got)
	}
	if tree.GetNodeByPath("image/movies") != nil {
		t.Error("artwork built a chain under the image group")
	}

	// Removing the artwork file clears both references.
	svc.FileGone("/lib/movies/alien.jpg")
	if movie.Art() != nil {
		t.Error("item art survived removal of the artwork file")
	}
	if node.Art() != nil {
		t.Error("container art survived removal of the artwork file")
	}
	if got := len(movie.Attachments()); got != 0 {
		t.Errorf("attachments after removal = %d, want 0", got)
	}
}

func TestService_UnmatchedImageIndexesNormally(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	svc.FileFound(newFakeFile("/lib/photos/sunset.jpg", "pixels", 5000))
	svc.Drain()

	item := tree.GetItemByFilePath("/lib/photos/sunset.jpg")
	if item == nil {
		t.Fatal("image not indexed")
	}
	node := tree.GetNodeByPath("image/photos")
	if node == nil || tree.GetNode(item.ParentID()) != node {
		t.Error("image not parented under the image group chain")
	}
	if node != nil && node.Art() != nil {
		t.Error("plain image became container art")
	}
}

func TestService_FileGone(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	svc.FileFound(newFakeFile("/lib/movies/alien.mp4", "movie", 5000))
	svc.Drain()

	svc.FileGone("/lib/movies/alien.mp4")
	if tree.GetItemByFilePath("/lib/movies/alien.mp4") != nil {
		t.Error("item survived FileGone")
	}
	if tree.GetNodeByPath("video/movies") != nil {
		t.Error("empty directory node survived FileGone")
	}
}

func TestService_FileModified(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	f := newFakeFile("/lib/movies/alien.mp4", "movie", 5000)
	svc.FileFound(f)
	svc.Drain()
	item := tree.GetItemByFilePath("/lib/movies/alien.mp4")
	id := item.ID()

	f.setContent("directors cut", 6000)
	svc.FileModified(f)
	svc.Drain()

	after := tree.GetItemByFilePath("/lib/movies/alien.mp4")
	if after.ID() != id {
		t.Errorf("id changed on content edit: %q then %q", id, after.ID())
	}
	if after.LastModified() != 6000 {
		t.Errorf("LastModified() = %d after Reload, want 6000", after.LastModified())
	}

	// Modification of an unindexed path falls back to discovery.
	g := newFakeFile("/lib/movies/late.mp4", "late", 7000)
	svc.FileModified(g)
	svc.Drain()
	if tree.GetItemByFilePath("/lib/movies/late.mp4") == nil {
		t.Error("modified-but-unknown file not indexed")
	}
}

func TestService_DurationPrefillAndWrite(t *testing.T) {
	store := newMemStore()
	store.durations["/lib/songs/a.mp3"] = DurationEntry{Path: "/lib/songs/a.mp3", Size: 4, Millis: 180000}

	tree := newTestTree()
	w := NewWorker(store, &seqIDs{}, RealClock{}, NewNopLogger())
	w.SetExistsFunc(allExist)
	w.submit = func(fn func()) { fn() }
	durations := NewDurationWriter(store, NewNopLogger(), time.Minute)
	svc := NewService(tree, NewPersistentResolver(w), store, durations, &seqIDs{n: 1000}, NewNopLogger(), "/lib", testFormatOf)

	svc.FileFound(newFakeFile("/lib/songs/a.mp3", "song", 5000))
	svc.Drain()

	item := tree.GetItemByFilePath("/lib/songs/a.mp3")
	if item.Duration() != 180000 {
		t.Errorf("Duration() = %d, want cached 180000", item.Duration())
	}

	// A consumer reports a fresh duration: visible immediately, durable on
	// the next flush.
	svc.SetItemDuration(item.ID(), 200000)
	if item.Duration() != 200000 {
		t.Errorf("Duration() = %d, want 200000", item.Duration())
	}
	if err := durations.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if millis, ok, _ := store.FindDuration("/lib/songs/a.mp3", item.FileLength()); !ok || millis != 200000 {
		t.Errorf("stored duration = %d, %v, want 200000, true", millis, ok)
	}
}

func TestService_AccessFileRestrictsSubtree(t *testing.T) {
	root := t.TempDir()
	private := filepath.Join(root, "private")
	if err := os.MkdirAll(private, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(private, AccessFileName), []byte("alice\n"), 0644); err != nil {
		t.Fatal(err)
	}

	svc, tree, _ := newTestService(t, root)
	svc.FileFound(newFakeFile(filepath.Join(private, "diary.mp4"), "secret", 5000))
	svc.Drain()

	item := tree.GetItemByFilePath(filepath.Join(private, "diary.mp4"))
	if item == nil {
		t.Fatal("item not indexed")
	}
	if items := tree.Recent().Items("bob"); len(items) != 0 {
		t.Errorf("bob sees %v via recent, want nothing", ids(items))
	}
	if items := tree.Recent().Items("alice"); len(items) != 1 {
		t.Errorf("alice sees %v via recent, want the item", ids(items))
	}
}

func TestService_GoneBeforeResolution(t *testing.T) {
	svc, tree, _ := newTestService(t, "/lib")

	f := newFakeFile("/lib/movies/flash.mp4", "movie", 5000)
	f.remove()
	svc.FileFound(f)
	svc.Drain()

	if tree.GetItemByFilePath("/lib/movies/flash.mp4") != nil {
		t.Error("gone file entered the tree")
	}
}
