package media

import "sync"

// Format is the coarse media classification used for the synthesized
// format-group containers.
type Format string

const (
	FormatVideo    Format = "video"
	FormatAudio    Format = "audio"
	FormatImage    Format = "image"
	FormatSubtitle Format = "subtitle"
)

// ContentItem is the in-memory leaf for one media file. Identity comes
// from the resolver; length and modification time are snapshotted at
// creation and refreshed by Reload.
type ContentItem struct {
	id       string
	parentID string
	title    string
	file     File
	format   Format

	mu           sync.Mutex
	attachments  []*ContentItem
	duration     int64
	art          *ContentItem
	fileLength   int64
	lastModified int64
}

// NewContentItem creates an item under the given parent, snapshotting the
// file's current length and modification time.
func NewContentItem(id, parentID, title string, f File, format Format) *ContentItem {
	return &ContentItem{
		id:           id,
		parentID:     parentID,
		title:        title,
		file:         f,
		format:       format,
		fileLength:   f.Length(),
		lastModified: f.LastModified(),
	}
}

func (it *ContentItem) ID() string       { return it.id }
func (it *ContentItem) ParentID() string { return it.parentID }
func (it *ContentItem) Title() string    { return it.title }
func (it *ContentItem) File() File       { return it.file }
func (it *ContentItem) Format() Format   { return it.format }

// Reload re-snapshots the file's length and modification time after a
// change was observed.
func (it *ContentItem) Reload() {
	length := it.file.Length()
	modified := it.file.LastModified()
	it.mu.Lock()
	it.fileLength = length
	it.lastModified = modified
	it.mu.Unlock()
}

func (it *ContentItem) FileLength() int64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.fileLength
}

func (it *ContentItem) LastModified() int64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.lastModified
}

// Duration returns the playback duration in milliseconds, 0 if unknown.
func (it *ContentItem) Duration() int64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.duration
}

func (it *ContentItem) SetDuration(millis int64) {
	it.mu.Lock()
	it.duration = millis
	it.mu.Unlock()
}

// Attach adds an attachment item (subtitle, artwork) to this item.
func (it *ContentItem) Attach(att *ContentItem) {
	it.mu.Lock()
	it.attachments = append(it.attachments, att)
	it.mu.Unlock()
}

// Detach removes the attachment with the given id, reporting whether it
// was present.
func (it *ContentItem) Detach(id string) bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	for i, att := range it.attachments {
		if att.id == id {
			it.attachments = append(it.attachments[:i], it.attachments[i+1:]...)
			if it.art != nil && it.art.id == id {
				it.art = nil
			}
			return true
		}
	}
	return false
}

// Attachments returns a copy of the attachment list.
func (it *ContentItem) Attachments() []*ContentItem {
	it.mu.Lock()
	defer it.mu.Unlock()
	return append([]*ContentItem(nil), it.attachments...)
}

// Art returns the artwork item reference, if any.
func (it *ContentItem) Art() *ContentItem {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.art
}

func (it *ContentItem) SetArt(art *ContentItem) {
	it.mu.Lock()
	it.art = art
	it.mu.Unlock()
}
