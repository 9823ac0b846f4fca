package fs

import (
	"path/filepath"
	"strings"

	"mediadex/internal/media"
)

// formatByExt maps lowercase file extensions to their media format group.
var formatByExt = map[string]media.Format{
	".avi":  media.FormatVideo,
	".mkv":  media.FormatVideo,
	".mov":  media.FormatVideo,
	".mp4":  media.FormatVideo,
	".mpg":  media.FormatVideo,
	".mpeg": media.FormatVideo,
	".ts":   media.FormatVideo,
	".webm": media.FormatVideo,
	".wmv":  media.FormatVideo,

	".aac":  media.FormatAudio,
	".flac": media.FormatAudio,
	".m4a":  media.FormatAudio,
	".mp3":  media.FormatAudio,
	".ogg":  media.FormatAudio,
	".wav":  media.FormatAudio,
	".wma":  media.FormatAudio,

	".bmp":  media.FormatImage,
	".gif":  media.FormatImage,
	".jpeg": media.FormatImage,
	".jpg":  media.FormatImage,
	".png":  media.FormatImage,
	".webp": media.FormatImage,

	".ass": media.FormatSubtitle,
	".smi": media.FormatSubtitle,
	".srt": media.FormatSubtitle,
	".sub": media.FormatSubtitle,
	".vtt": media.FormatSubtitle,
}

// FormatOf classifies a file name by extension. ok is false for names
// that are not media files at all.
func FormatOf(name string) (media.Format, bool) {
	format, ok := formatByExt[strings.ToLower(filepath.Ext(name))]
	return format, ok
}
