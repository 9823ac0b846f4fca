package media

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"
	"sync"
)

// AccessType selects how an AuthList treats usernames that are not listed.
type AccessType int

const (
	// AccessUserList admits exactly the listed usernames.
	AccessUserList AccessType = iota
	// AccessDenyUnlisted is the fail-closed variant produced for malformed
	// configuration: nobody is admitted.
	AccessDenyUnlisted
)

// Permission is an optional grant attached to a username in an AuthList.
type Permission string

const (
	PermissionEditTags     Permission = "edit-tags"
	PermissionEditDirPrefs Permission = "edit-dir-prefs"
)

// PublicAuthID is the reserved scope token meaning "no restriction".
const PublicAuthID uint32 = 0

// AuthList is an immutable, hash-identified set of usernames restricting
// visibility of a subtree. Two AuthLists with the same username set are
// equal and share an id, which lets the store and search layer scope rows
// without persisting usernames.
type AuthList struct {
	access AccessType
	users  []string // sorted, unique
	perms  map[string][]Permission
	id     uint32
}

// NewAuthList builds an AuthList from usernames with optional per-user
// permissions. The permission map may be nil.
func NewAuthList(access AccessType, usernames []string, perms map[string][]Permission) *AuthList {
	users := dedupSorted(usernames)

	kept := make(map[string][]Permission, len(perms))
	for user, ps := range perms {
		if containsString(users, user) && len(ps) > 0 {
			kept[user] = append([]Permission(nil), ps...)
		}
	}

	return &AuthList{
		access: access,
		users:  users,
		perms:  kept,
		id:     authIDFor(users),
	}
}

// DenyAllAuthList is the fail-closed list used when configuration cannot
// be trusted.
func DenyAllAuthList() *AuthList {
	return NewAuthList(AccessDenyUnlisted, nil, nil)
}

// ID returns the deterministic identity of the username set. A nil list
// is public and returns the reserved zero id; a real list is never zero.
func (a *AuthList) ID() uint32 {
	if a == nil {
		return PublicAuthID
	}
	return a.id
}

// Users returns the sorted username set.
func (a *AuthList) Users() []string {
	return append([]string(nil), a.users...)
}

// Admits reports whether the username may see content behind this list.
// A nil AuthList is public and admits everyone.
func (a *AuthList) Admits(username string) bool {
	if a == nil {
		return true
	}
	if a.access == AccessDenyUnlisted && len(a.users) == 0 {
		return false
	}
	return containsString(a.users, username)
}

// HasPermission reports whether the username holds the given grant.
func (a *AuthList) HasPermission(username string, perm Permission) bool {
	if a == nil {
		return false
	}
	for _, p := range a.perms[username] {
		if p == perm {
			return true
		}
	}
	return false
}

// Equal reports whether both lists cover the same username set.
func (a *AuthList) Equal(other *AuthList) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}

// authIDFor hashes the sorted username list with FNV-1a. The all-zero
// value is disallowed (reserved for public); the hash is perturbed until
// it is non-zero.
func authIDFor(users []string) uint32 {
	h := fnv.New32a()
	for _, u := range users {
		h.Write([]byte(u))
		h.Write([]byte{0})
	}
	id := h.Sum32()
	for id == PublicAuthID {
		h.Write([]byte{0xff})
		id = h.Sum32()
	}
	return id
}

// ParseAuthFile reads an auth list from a file of lines in the form
//
//	username[:permission,permission]
//
// Blank lines and '#' comments are skipped. Any invalid username or
// unknown permission makes the whole list deny-all rather than partially
// trusted.
func ParseAuthFile(path string) (*AuthList, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening auth file: %w", err)
	}
	defer f.Close()

	var users []string
	perms := make(map[string][]Permission)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, rest, _ := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !validUsername(name) {
			// Fail closed: a malformed entry denies the whole scope.
			return DenyAllAuthList(), nil
		}
		users = append(users, name)

		if rest == "" {
			continue
		}
		for _, raw := range strings.Split(rest, ",") {
			perm := Permission(strings.TrimSpace(raw))
			switch perm {
			case PermissionEditTags, PermissionEditDirPrefs:
				perms[name] = append(perms[name], perm)
			default:
				return DenyAllAuthList(), nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading auth file: %w", err)
	}

	return NewAuthList(AccessUserList, users, perms), nil
}

func validUsername(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r == ':' || r == ',' || r == 0x7f {
			return false
		}
	}
	return true
}

func dedupSorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i == 0 || s != out[i-1] {
			out[n] = s
			n++
		}
	}
	return out[:n]
}

func containsString(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}

// AuthSet is the reverse index from username to the auth ids that admit
// that user. It is built incrementally as nodes carrying AuthLists enter
// the tree, so the search layer can scope queries without re-walking the
// tree.
type AuthSet struct {
	mu     sync.RWMutex
	byUser map[string]map[uint32]struct{}
}

func NewAuthSet() *AuthSet {
	return &AuthSet{byUser: make(map[string]map[uint32]struct{})}
}

// Add indexes every username admitted by the list.
func (s *AuthSet) Add(list *AuthList) {
	if list == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range list.users {
		ids, ok := s.byUser[user]
		if !ok {
			ids = make(map[uint32]struct{})
			s.byUser[user] = ids
		}
		ids[list.id] = struct{}{}
	}
}

// IDsForUser returns the auth ids admitting the username, sorted.
func (s *AuthSet) IDsForUser(username string) []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[username]
	out := make([]uint32, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
