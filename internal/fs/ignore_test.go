package fs

import "testing"

func TestIgnoreMatcher(t *testing.T) {
	t.Run("no patterns matches nothing", func(t *testing.T) {
		m := NewIgnoreMatcher(nil)
		if m.Match("movies/alien.mp4") {
			t.Error("empty matcher matched a path")
		}
	})

	t.Run("basename patterns", func(t *testing.T) {
		m := NewIgnoreMatcher([]string{"*.tmp", ".stfolder"})
		if !m.Match("movies/upload.tmp") {
			t.Error("*.tmp did not match nested file")
		}
		if !m.Match(".stfolder") {
			t.Error(".stfolder did not match")
		}
		if m.Match("movies/alien.mp4") {
			t.Error("matched an unlisted file")
		}
	})

	t.Run("path patterns anchor to the root", func(t *testing.T) {
		m := NewIgnoreMatcher([]string{"staging/*"})
		if !m.Match("staging/alien.mp4") {
			t.Error("staging/* did not match direct child")
		}
		if m.Match("movies/staging.mp4") {
			t.Error("path pattern matched by basename")
		}
	})

	t.Run("comments and blanks skipped", func(t *testing.T) {
		m := NewIgnoreMatcher([]string{"", "# temp files", "*.part"})
		if !m.Match("file.part") {
			t.Error("pattern after comment not applied")
		}
		if m.Match("# temp files") {
			t.Error("comment line used as pattern")
		}
	})

	t.Run("bad pattern skipped", func(t *testing.T) {
		m := NewIgnoreMatcher([]string{"[", "*.tmp"})
		if !m.Match("a.tmp") {
			t.Error("valid pattern lost after malformed one")
		}
	})
}
