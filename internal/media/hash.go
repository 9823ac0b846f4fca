package media

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
)

// contentDigest is the result of one streaming pass over a file's bytes:
// the strong hash used for identity, the secondary hash, the sniffed mime
// type and the byte count actually read.
type contentDigest struct {
	contentHash   string
	secondaryHash string
	mimeType      string
	size          int64
}

// digestFile reads the whole file once, computing both hashes and sniffing
// the mime type from the leading bytes. This is the expensive step of
// resolution; callers avoid it whenever the stored size and mtime still
// match.
func digestFile(f File) (contentDigest, error) {
	rc, err := f.Open()
	if err != nil {
		return contentDigest{}, fmt.Errorf("opening %s: %w", f.Path(), err)
	}
	defer rc.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(rc, sniff)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return contentDigest{}, fmt.Errorf("reading %s: %w", f.Path(), err)
	}
	sniff = sniff[:n]

	primary := sha1.New()
	secondary := md5.New()
	primary.Write(sniff)
	secondary.Write(sniff)

	rest, err := io.Copy(io.MultiWriter(primary, secondary), rc)
	if err != nil {
		return contentDigest{}, fmt.Errorf("hashing %s: %w", f.Path(), err)
	}

	return contentDigest{
		contentHash:   hex.EncodeToString(primary.Sum(nil)),
		secondaryHash: hex.EncodeToString(secondary.Sum(nil)),
		mimeType:      http.DetectContentType(sniff),
		size:          int64(n) + rest,
	}, nil
}
