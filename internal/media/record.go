package media

// ContentRecord is the persisted metadata for one absolute file path.
// The path is the primary key; the id is the externally visible stable
// identifier derived from content.
//
// ContentRecord is an immutable value type: updates go through the
// With methods, which return a modified copy. This keeps concurrent
// readers safe without locking.
type ContentRecord struct {
	path          string
	size          int64
	modified      int64 // unix millis
	contentHash   string
	secondaryHash string
	mimeType      string
	id            string
	authScope     uint32
	missing       bool
}

// NewContentRecord creates a record for a newly hashed file. The content
// hash must never be empty.
func NewContentRecord(path string, size int64, modified int64, contentHash string) ContentRecord {
	if contentHash == "" {
		panic("media: content hash must not be empty")
	}
	return ContentRecord{
		path:        path,
		size:        size,
		modified:    modified,
		contentHash: contentHash,
	}
}

// RestoreContentRecord reconstructs a record from its persisted fields.
// It is intended for store implementations only.
func RestoreContentRecord(path string, size, modified int64, contentHash, secondaryHash, mimeType, id string, authScope uint32, missing bool) ContentRecord {
	return ContentRecord{
		path:          path,
		size:          size,
		modified:      modified,
		contentHash:   contentHash,
		secondaryHash: secondaryHash,
		mimeType:      mimeType,
		id:            id,
		authScope:     authScope,
		missing:       missing,
	}
}

func (r ContentRecord) Path() string          { return r.path }
func (r ContentRecord) Size() int64           { return r.size }
func (r ContentRecord) Modified() int64       { return r.modified }
func (r ContentRecord) ContentHash() string   { return r.contentHash }
func (r ContentRecord) SecondaryHash() string { return r.secondaryHash }
func (r ContentRecord) MimeType() string      { return r.mimeType }
func (r ContentRecord) ID() string            { return r.id }
func (r ContentRecord) AuthScope() uint32     { return r.authScope }
func (r ContentRecord) Missing() bool         { return r.missing }

// HasID reports whether the record has been assigned its stable id.
// A record without an id is "new" and must not be handed to callers.
func (r ContentRecord) HasID() bool { return r.id != "" }

// UpToDate reports whether the recorded size and modification time still
// match the live file. When true the stored id can be returned without
// rehashing.
func (r ContentRecord) UpToDate(size, modified int64) bool {
	return r.size == size && r.modified == modified
}

// WithID assigns the stable id. The id is set exactly once; replacing an
// already assigned id must go through WithReplacedID.
func (r ContentRecord) WithID(id string) ContentRecord {
	if r.id != "" {
		panic("media: record id already assigned")
	}
	r.id = id
	return r
}

// WithReplacedID replaces an already assigned id. This is the explicit
// merge operation; it must not be used to assign a first id.
func (r ContentRecord) WithReplacedID(id string) ContentRecord {
	if r.id == "" {
		panic("media: record has no id to replace")
	}
	r.id = id
	return r
}

// WithContent records new size, modification time and content hash after
// the file changed on disk. The id is untouched: identity is sticky across
// content edits.
func (r ContentRecord) WithContent(size, modified int64, contentHash string) ContentRecord {
	if contentHash == "" {
		panic("media: content hash must not be empty")
	}
	r.size = size
	r.modified = modified
	r.contentHash = contentHash
	return r
}

// WithSecondaryHash sets the secondary hash. Once set it is immutable;
// setting it again is a no-op.
func (r ContentRecord) WithSecondaryHash(hash string) ContentRecord {
	if r.secondaryHash == "" {
		r.secondaryHash = hash
	}
	return r
}

// WithMimeType sets the mime type. Once set it is immutable; setting it
// again is a no-op.
func (r ContentRecord) WithMimeType(mimeType string) ContentRecord {
	if r.mimeType == "" {
		r.mimeType = mimeType
	}
	return r
}

// WithAuthScope sets the auth scope token for the record.
func (r ContentRecord) WithAuthScope(scope uint32) ContentRecord {
	r.authScope = scope
	return r
}

// WithMissing sets the missing flag, recorded by the reconciler once the
// backing file is observed gone.
func (r ContentRecord) WithMissing(missing bool) ContentRecord {
	r.missing = missing
	return r
}
