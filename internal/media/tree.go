package media

import "sync"

// ContentTree is the process-scoped concurrent registry of directory nodes
// and file items. It is populated during scans, mutated by add/remove
// events afterwards, and torn down only at process exit. All components
// receive it as an explicit dependency.
//
// Locking: the global maps have a single RWMutex; each node's child
// collections carry their own lock (see ContentNode); the recent set has
// its own lock. Cross-node walks take one lock at a time.
type ContentTree struct {
	logger Logger

	mu          sync.RWMutex
	nodes       map[string]*ContentNode
	items       map[string]*ContentItem
	nodesByPath map[string]*ContentNode // canonical relative path -> node
	itemsByPath map[string]*ContentItem // absolute file path -> item
	root        *ContentNode

	recent *RecentSet
	auth   *AuthSet
}

// NewContentTree creates a tree with its synthesized root container.
func NewContentTree(recentCapacity int, logger Logger) *ContentTree {
	t := &ContentTree{
		logger:      logger,
		nodes:       make(map[string]*ContentNode),
		items:       make(map[string]*ContentItem),
		nodesByPath: make(map[string]*ContentNode),
		itemsByPath: make(map[string]*ContentItem),
		recent:      NewRecentSet(recentCapacity),
		auth:        NewAuthSet(),
	}
	root := NewContentNode("0", "", "Root", "", "", "")
	root.markProtected()
	t.root = root
	t.nodes[root.id] = root
	return t
}

// Root returns the root container.
func (t *ContentTree) Root() *ContentNode { return t.root }

// Recent returns the bounded recently-added view.
func (t *ContentTree) Recent() *RecentSet { return t.recent }

// AuthIDsForUser exposes the username -> auth-id reverse index to the
// search layer.
func (t *ContentTree) AuthIDsForUser(username string) []uint32 {
	return t.auth.IDsForUser(username)
}

// AddProtectedNode registers a synthesized default container (format
// group, recent). Protected nodes survive cascade removal even when
// empty.
func (t *ContentTree) AddProtectedNode(node *ContentNode) bool {
	node.markProtected()
	return t.AddNode(node)
}

// AddNode registers a node and inserts it under its parent. Returns false
// when the id is already present or the parent is unknown.
func (t *ContentTree) AddNode(node *ContentNode) bool {
	t.mu.Lock()
	if _, dup := t.nodes[node.id]; dup {
		t.mu.Unlock()
		return false
	}
	parent, ok := t.nodes[node.parentID]
	if !ok {
		t.mu.Unlock()
		t.logger.Error("node added with unknown parent", "id", node.id, "parent", node.parentID)
		return false
	}
	t.nodes[node.id] = node
	if node.relPath != "" {
		if existing, dup := t.nodesByPath[node.relPath]; dup {
			// Duplicate share of the same directory: keep the first
			// registration authoritative for path lookups.
			t.logger.Warn("duplicate node path", "path", node.relPath, "kept", existing.id, "dropped", node.id)
		} else {
			t.nodesByPath[node.relPath] = node
		}
	}
	t.mu.Unlock()

	parent.AddNodeIfAbsent(node)
	t.auth.Add(node.AuthList())
	return true
}

// AddItem registers an item, inserts it under its parent, offers it to
// the recent view and snapshots the parent's effective restriction.
func (t *ContentTree) AddItem(item *ContentItem) bool {
	t.mu.Lock()
	if _, dup := t.items[item.id]; dup {
		t.mu.Unlock()
		return false
	}
	parent, ok := t.nodes[item.parentID]
	if !ok {
		t.mu.Unlock()
		t.logger.Error("item added with unknown parent", "id", item.id, "parent", item.parentID)
		return false
	}
	t.items[item.id] = item
	t.itemsByPath[item.file.Path()] = item
	t.mu.Unlock()

	parent.AddItemIfAbsent(item)
	parent.SetLastModified(item.LastModified())
	t.recent.Add(item, t.effectiveAuth(parent))
	return true
}

// AddAttachment registers an attachment item (subtitle, artwork) in the
// global indexes and attaches it to its target. Attachments are items but
// are not inserted into any node's child collection; they are reachable
// through their target and removable by file path.
func (t *ContentTree) AddAttachment(target, att *ContentItem) bool {
	t.mu.Lock()
	if _, dup := t.items[att.id]; dup {
		t.mu.Unlock()
		return false
	}
	t.items[att.id] = att
	t.itemsByPath[att.file.Path()] = att
	t.mu.Unlock()

	target.Attach(att)
	return true
}

// GetNode returns the node by id, nil when unknown.
func (t *ContentTree) GetNode(id string) *ContentNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[id]
}

// GetItem returns the item by id, nil when unknown.
func (t *ContentTree) GetItem(id string) *ContentItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.items[id]
}

// GetNodeByPath returns the node registered under a canonical relative
// path, nil when unknown.
func (t *ContentTree) GetNodeByPath(relPath string) *ContentNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodesByPath[relPath]
}

// GetItemByFilePath returns the item backed by an absolute file path.
func (t *ContentTree) GetItemByFilePath(path string) *ContentItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.itemsByPath[path]
}

// LivePaths returns the set of absolute file paths currently backed by a
// tree item. Consumed by the reconciler.
func (t *ContentTree) LivePaths() map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]struct{}, len(t.itemsByPath))
	for p := range t.itemsByPath {
		out[p] = struct{}{}
	}
	return out
}

// GetItemsForIDs returns the items for the given ids that the username is
// authorized to see. Unknown ids and forbidden ids are excluded the same
// way: silently.
func (t *ContentTree) GetItemsForIDs(ids []string, username string) []*ContentItem {
	out := make([]*ContentItem, 0, len(ids))
	for _, id := range ids {
		t.mu.RLock()
		item := t.items[id]
		var parent *ContentNode
		if item != nil {
			parent = t.nodes[item.parentID]
		}
		t.mu.RUnlock()
		if item == nil || parent == nil {
			continue
		}
		if !t.effectiveAuth(parent).Admits(username) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// RemoveFile removes every tree entry backed by the file and cascades
// upward: a parent left empty is removed too, unless protected. Returns
// the number of entries removed (item plus cascaded nodes).
func (t *ContentTree) RemoveFile(path string) int {
	t.mu.Lock()
	item, ok := t.itemsByPath[path]
	if !ok {
		t.mu.Unlock()
		return 0
	}
	delete(t.itemsByPath, path)
	delete(t.items, item.id)
	parent := t.nodes[item.parentID]
	t.mu.Unlock()

	removed := 1
	t.recent.Remove(item.id)

	if parent != nil {
		parent.RemoveItem(item.id)
		removed += t.cascade(parent)
	}

	// Drop the item from any sibling it was attached to.
	if item.format == FormatSubtitle || item.format == FormatImage {
		t.detachEverywhere(item.id)
	}
	return removed
}

// RemoveNode removes a node and everything beneath it, then cascades
// upward from its parent. Returns the number of entries removed.
func (t *ContentTree) RemoveNode(id string) int {
	t.mu.RLock()
	node := t.nodes[id]
	t.mu.RUnlock()
	if node == nil || node.protected {
		return 0
	}

	removed := t.removeSubtree(node)

	t.mu.RLock()
	parent := t.nodes[node.parentID]
	t.mu.RUnlock()
	if parent != nil {
		parent.RemoveNode(node.id)
		removed += t.cascade(parent)
	}
	return removed
}

// cascade removes now-empty unprotected ancestors, one node lock at a
// time. A bounded visited set aborts on any parent-pointer cycle: the
// tree is supposed to be acyclic, a revisit is a data bug, not a reason
// to spin.
func (t *ContentTree) cascade(node *ContentNode) int {
	removed := 0
	visited := make(map[string]struct{}, 16)

	for node != nil && !node.protected && node.Empty() {
		if _, seen := visited[node.id]; seen {
			t.logger.Error("cycle detected during cascade removal, aborting", "id", node.id)
			return removed
		}
		visited[node.id] = struct{}{}

		t.mu.Lock()
		delete(t.nodes, node.id)
		if node.relPath != "" && t.nodesByPath[node.relPath] == node {
			delete(t.nodesByPath, node.relPath)
		}
		parent := t.nodes[node.parentID]
		t.mu.Unlock()

		removed++
		if parent != nil {
			parent.RemoveNode(node.id)
		}
		node = parent
	}
	return removed
}

// removeSubtree unregisters a node and all descendants from the global
// maps and the recent view.
func (t *ContentTree) removeSubtree(node *ContentNode) int {
	removed := 0
	for _, child := range node.Children() {
		node.RemoveNode(child.id)
		removed += t.removeSubtree(child)
	}
	for _, item := range node.Items() {
		node.RemoveItem(item.id)
		t.recent.Remove(item.id)
		t.mu.Lock()
		delete(t.items, item.id)
		delete(t.itemsByPath, item.file.Path())
		t.mu.Unlock()
		removed++
	}

	t.mu.Lock()
	delete(t.nodes, node.id)
	if node.relPath != "" && t.nodesByPath[node.relPath] == node {
		delete(t.nodesByPath, node.relPath)
	}
	t.mu.Unlock()
	return removed + 1
}

// effectiveAuth walks up from the node to the nearest ancestor carrying an
// AuthList. Returns nil (public) when no ancestor is restricted.
func (t *ContentTree) effectiveAuth(node *ContentNode) *AuthList {
	for node != nil {
		if list := node.AuthList(); list != nil {
			return list
		}
		if node.parentID == "" {
			return nil
		}
		t.mu.RLock()
		node = t.nodes[node.parentID]
		t.mu.RUnlock()
	}
	return nil
}

func (t *ContentTree) detachEverywhere(attachmentID string) {
	t.mu.RLock()
	items := make([]*ContentItem, 0, len(t.items))
	for _, it := range t.items {
		items = append(items, it)
	}
	nodes := make([]*ContentNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		nodes = append(nodes, n)
	}
	t.mu.RUnlock()
	for _, it := range items {
		it.Detach(attachmentID)
	}
	for _, n := range nodes {
		n.DetachArt(attachmentID)
	}
}
