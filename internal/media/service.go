package media

import (
	"path/filepath"
	"strings"
	"sync"
)

// AccessFileName is the per-directory auth list file. Its presence
// restricts the directory's subtree to the listed usernames.
const AccessFileName = ".mdxaccess"

// EventSink consumes filesystem discovery events. The index core never
// initiates scanning; watchers and scanners push events into a sink.
type EventSink interface {
	FileFound(f File)
	FileModified(f File)
	FileGone(path string)
}

// FormatFunc classifies a file name into a media format. Names that are
// not media at all return ok=false and are ignored by the service.
type FormatFunc func(name string) (Format, bool)

// Service wires discovery events to the resolver and the content tree.
// It owns the synthesized default containers (one per format group plus
// the recent container) and the per-directory node chains beneath them.
type Service struct {
	tree      *ContentTree
	resolver  Resolver
	store     Store           // nil in transient mode
	durations *DurationWriter // nil in transient mode
	logger    Logger
	idgen     IDGenerator
	root      string
	formatOf  FormatFunc

	groups map[Format]*ContentNode

	inflight sync.WaitGroup
}

// NewService creates the orchestration layer for one library root.
// store and durations may be nil when running without persistence.
func NewService(tree *ContentTree, resolver Resolver, store Store, durations *DurationWriter, idgen IDGenerator, logger Logger, root string, formatOf FormatFunc) *Service {
	s := &Service{
		tree:      tree,
		resolver:  resolver,
		store:     store,
		durations: durations,
		logger:    logger,
		idgen:     idgen,
		root:      filepath.Clean(root),
		formatOf:  formatOf,
		groups:    make(map[Format]*ContentNode),
	}
	s.initContainers()
	return s
}

// initContainers synthesizes the protected default containers.
func (s *Service) initContainers() {
	rootID := s.tree.Root().ID()
	for _, g := range []struct {
		format Format
		title  string
	}{
		{FormatVideo, "Video"},
		{FormatAudio, "Audio"},
		{FormatImage, "Image"},
	} {
		node := NewContentNode(s.idgen.New(), rootID, g.title, g.title, "", string(g.format))
		s.tree.AddProtectedNode(node)
		s.groups[g.format] = node
	}
	recent := NewContentNode(s.idgen.New(), rootID, "Recently Added", "zzz-recent", "", "recent")
	s.tree.AddProtectedNode(recent)
}

// Tree exposes the content tree to read-side consumers.
func (s *Service) Tree() *ContentTree { return s.tree }

// FileFound handles a discovery event for a new file. Non-media files are
// ignored; subtitle and artwork files become attachments of the matching
// media item when one exists.
func (s *Service) FileFound(f File) {
	format, ok := s.formatOf(f.Name())
	if !ok {
		return
	}

	if format == FormatSubtitle {
		s.attach(f, format)
		return
	}
	if format == FormatImage {
		// A stem-matched image is artwork for its sibling media item.
		// Without a match it is content of its own and indexes normally.
		if target := s.findAttachmentTarget(f.Path()); target != nil {
			s.attachTo(target, f, format)
			return
		}
	}

	parent, err := s.ensureDirNodes(format, f.Path())
	if err != nil {
		s.logger.Error("building directory chain", "path", f.Path(), "error", err)
		return
	}

	scope := s.tree.effectiveAuth(parent).ID()
	s.inflight.Add(1)
	s.resolver.Resolve(f, scope, func(id string, err error) {
		defer s.inflight.Done()
		if err != nil {
			s.logger.Error("resolving file", "path", f.Path(), "error", err)
			return
		}
		if !f.Exists() {
			// Gone between discovery and resolution: deregister instead.
			s.tree.RemoveFile(f.Path())
			return
		}
		item := NewContentItem(id, parent.ID(), titleOf(f.Name()), f, format)
		if s.store != nil {
			if millis, ok, err := s.store.FindDuration(f.Path(), f.Length()); err == nil && ok {
				item.SetDuration(millis)
			}
		}
		if !s.tree.AddItem(item) {
			s.logger.Debug("item already present", "id", id, "path", f.Path())
		}
	})
}

// FileModified re-resolves a changed file and refreshes the item
// snapshot. The id is sticky across content edits, so the tree entry
// survives in place.
func (s *Service) FileModified(f File) {
	item := s.tree.GetItemByFilePath(f.Path())
	if item == nil {
		s.FileFound(f)
		return
	}

	parent := s.tree.GetNode(item.ParentID())
	scope := s.tree.effectiveAuth(parent).ID()
	s.inflight.Add(1)
	s.resolver.Resolve(f, scope, func(id string, err error) {
		defer s.inflight.Done()
		if err != nil {
			s.logger.Error("re-resolving file", "path", f.Path(), "error", err)
			return
		}
		if !f.Exists() {
			s.tree.RemoveFile(f.Path())
			return
		}
		item.Reload()
		if id != item.ID() {
			// Identity changed through a merge: replace the tree entry.
			s.tree.RemoveFile(f.Path())
			replacement := NewContentItem(id, item.ParentID(), item.Title(), f, item.Format())
			s.tree.AddItem(replacement)
			return
		}
		if parent != nil {
			s.tree.recent.Add(item, s.tree.effectiveAuth(parent))
		}
	})
}

// FileGone removes the tree entries for a deleted file. The durable
// record is cleaned up later by the reconciler, not synchronously.
func (s *Service) FileGone(path string) {
	if removed := s.tree.RemoveFile(path); removed > 0 {
		s.logger.Debug("file removed from tree", "path", path, "entries", removed)
	}
}

// SetItemDuration records a playback duration reported by a consumer and
// queues the durable cache write.
func (s *Service) SetItemDuration(id string, millis int64) {
	item := s.tree.GetItem(id)
	if item == nil {
		return
	}
	item.SetDuration(millis)
	if s.durations != nil {
		s.durations.Add(item.File().Path(), item.FileLength(), millis)
	}
}

// Drain blocks until every in-flight resolution callback has completed.
// Meaningful after a scan, when no new events are being produced.
func (s *Service) Drain() {
	s.inflight.Wait()
}

// attach resolves a subtitle file and attaches it to the media item
// sharing its directory and name stem. Without a target the file is
// dropped; a later scan pass will retry once the media item exists.
func (s *Service) attach(f File, format Format) {
	target := s.findAttachmentTarget(f.Path())
	if target == nil {
		s.logger.Debug("attachment without target", "path", f.Path())
		return
	}
	s.attachTo(target, f, format)
}

// attachTo resolves an attachment file and attaches it to its target.
// Artwork additionally becomes the target's art reference and, when the
// container has none yet, the container's.
func (s *Service) attachTo(target *ContentItem, f File, format Format) {
	scope := s.tree.effectiveAuth(s.tree.GetNode(target.ParentID())).ID()
	s.inflight.Add(1)
	s.resolver.Resolve(f, scope, func(id string, err error) {
		defer s.inflight.Done()
		if err != nil {
			s.logger.Error("resolving attachment", "path", f.Path(), "error", err)
			return
		}
		if !f.Exists() {
			return
		}
		att := NewContentItem(id, target.ParentID(), titleOf(f.Name()), f, format)
		if !s.tree.AddAttachment(target, att) {
			return
		}
		if format == FormatImage {
			target.SetArt(att)
			if node := s.tree.GetNode(target.ParentID()); node != nil && node.Art() == nil {
				node.SetArt(att)
			}
		}
	})
}

// findAttachmentTarget locates the media item with the same directory and
// name stem as the attachment path.
func (s *Service) findAttachmentTarget(path string) *ContentItem {
	dir := filepath.Dir(path)
	stem := titleOf(filepath.Base(path))
	for _, format := range []Format{FormatVideo, FormatAudio} {
		node := s.dirNodeFor(format, dir)
		if node == nil {
			continue
		}
		for _, item := range node.Items() {
			if titleOf(item.File().Name()) == stem {
				return item
			}
		}
	}
	return nil
}

// dirNodeFor returns the existing directory node for an absolute
// directory under the given format group, nil if never built.
func (s *Service) dirNodeFor(format Format, absDir string) *ContentNode {
	rel, err := filepath.Rel(s.root, absDir)
	if err != nil {
		return nil
	}
	key := string(format)
	if rel != "." {
		key += "/" + filepath.ToSlash(rel)
	}
	return s.tree.GetNodeByPath(key)
}

// ensureDirNodes builds (or finds) the chain of directory nodes from the
// format group container down to the file's directory. A directory
// carrying an access file restricts its subtree; an unreadable or
// malformed access file fails closed.
func (s *Service) ensureDirNodes(format Format, filePath string) (*ContentNode, error) {
	dir := filepath.Dir(filePath)
	rel, err := filepath.Rel(s.root, dir)
	if err != nil {
		return nil, err
	}

	parent := s.groups[format]
	if rel == "." {
		return parent, nil
	}

	key := string(format)
	absDir := s.root
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		key += "/" + seg
		absDir = filepath.Join(absDir, seg)

		if node := s.tree.GetNodeByPath(key); node != nil {
			parent = node
			continue
		}

		node := NewContentNode(s.idgen.New(), parent.ID(), seg, seg, absDir, key)
		list, err := ParseAuthFile(filepath.Join(absDir, AccessFileName))
		if err != nil {
			s.logger.Warn("unreadable access file, denying all", "dir", absDir, "error", err)
			list = DenyAllAuthList()
		}
		node.SetAuthList(list)
		if !s.tree.AddNode(node) {
			// Lost a race with a concurrent event for the same directory.
			if existing := s.tree.GetNodeByPath(key); existing != nil {
				node = existing
			}
		}
		parent = node
	}
	return parent, nil
}

// titleOf strips the extension from a file name.
func titleOf(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext)
}

var _ EventSink = (*Service)(nil)
