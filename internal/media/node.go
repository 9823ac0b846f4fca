package media

import (
	"sort"
	"strings"
	"sync"
)

// ContentNode is an in-memory directory-like container. Child collections
// are kept sorted on every insert and guarded by the node's own lock;
// cross-node operations take one node's lock at a time, never two at once.
type ContentNode struct {
	id        string
	parentID  string // empty only for the root
	title     string
	sortKey   string
	dirPath   string // backing directory, empty for synthesized containers
	relPath   string // canonical relative path for the path index, may be empty
	auth      *AuthList
	protected bool // default container: never removed by cascade

	mu           sync.Mutex
	children     []*ContentNode // sorted by sortKey then id
	items        []*ContentItem // sorted by title (case-insensitive) then id
	art          *ContentItem
	lastModified int64
}

// NewContentNode creates a directory node. relPath may be empty for
// synthesized containers (root, format groups, recent).
func NewContentNode(id, parentID, title, sortKey, dirPath, relPath string) *ContentNode {
	return &ContentNode{
		id:       id,
		parentID: parentID,
		title:    title,
		sortKey:  sortKey,
		dirPath:  dirPath,
		relPath:  relPath,
	}
}

func (n *ContentNode) ID() string       { return n.id }
func (n *ContentNode) ParentID() string { return n.parentID }
func (n *ContentNode) Title() string    { return n.title }
func (n *ContentNode) SortKey() string  { return n.sortKey }
func (n *ContentNode) DirPath() string  { return n.dirPath }
func (n *ContentNode) RelPath() string  { return n.relPath }

// Protected reports whether this node is one of the default containers
// that cascade removal must never delete.
func (n *ContentNode) Protected() bool { return n.protected }

// AuthList returns the restriction attached to this node, nil when the
// node itself is unrestricted. The list is assigned before the node enters
// the tree and immutable afterwards, so no lock is needed.
func (n *ContentNode) AuthList() *AuthList { return n.auth }

// SetAuthList attaches a restriction. Only valid before the node is added
// to the tree.
func (n *ContentNode) SetAuthList(list *AuthList) { n.auth = list }

func (n *ContentNode) markProtected() { n.protected = true }

// AddNodeIfAbsent inserts the child node in sorted position, reporting
// whether it was added. A child with the same id is left untouched.
func (n *ContentNode) AddNodeIfAbsent(child *ContentNode) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.children {
		if c.id == child.id {
			return false
		}
	}
	n.children = append(n.children, child)
	sort.SliceStable(n.children, func(i, j int) bool {
		a, b := n.children[i], n.children[j]
		if a.sortKey != b.sortKey {
			return a.sortKey < b.sortKey
		}
		return a.id < b.id
	})
	return true
}

// AddItemIfAbsent inserts the item in sorted position, reporting whether
// it was added.
func (n *ContentNode) AddItemIfAbsent(item *ContentItem) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, it := range n.items {
		if it.id == item.id {
			return false
		}
	}
	n.items = append(n.items, item)
	sort.SliceStable(n.items, func(i, j int) bool {
		a, b := n.items[i], n.items[j]
		at, bt := strings.ToLower(a.title), strings.ToLower(b.title)
		if at != bt {
			return at < bt
		}
		return a.id < b.id
	})
	return true
}

// RemoveNode removes the child node by id, reporting whether it was
// present.
func (n *ContentNode) RemoveNode(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, c := range n.children {
		if c.id == id {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveItem removes the child item by id, reporting whether it was
// present.
func (n *ContentNode) RemoveItem(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, it := range n.items {
		if it.id == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			if n.art != nil && n.art.id == id {
				n.art = nil
			}
			return true
		}
	}
	return false
}

// Children returns a snapshot of the child nodes in presentation order.
func (n *ContentNode) Children() []*ContentNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*ContentNode(nil), n.children...)
}

// Items returns a snapshot of the child items in presentation order.
func (n *ContentNode) Items() []*ContentItem {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*ContentItem(nil), n.items...)
}

// Empty reports whether the node has no children at all.
func (n *ContentNode) Empty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.children) == 0 && len(n.items) == 0
}

// Art returns the cached container artwork reference.
func (n *ContentNode) Art() *ContentItem {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.art
}

func (n *ContentNode) SetArt(art *ContentItem) {
	n.mu.Lock()
	n.art = art
	n.mu.Unlock()
}

// DetachArt clears the artwork reference when it points at the given
// attachment id.
func (n *ContentNode) DetachArt(id string) {
	n.mu.Lock()
	if n.art != nil && n.art.id == id {
		n.art = nil
	}
	n.mu.Unlock()
}

func (n *ContentNode) LastModified() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastModified
}

func (n *ContentNode) SetLastModified(millis int64) {
	n.mu.Lock()
	if millis > n.lastModified {
		n.lastModified = millis
	}
	n.mu.Unlock()
}
