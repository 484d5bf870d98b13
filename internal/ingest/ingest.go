// Package ingest implements the ingestion pipeline: batch scanning and
// continuous watching of folders, reconciling files with the
// Catalog Store, dispatching entity-ready events to plugins, and
// re-indexing stale entities.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// tempNamePrefixes excludes editor/OS temp files from scans: names
// starting with '.', 'tmp', or 'temp' are dropped.
var tempNamePrefixes = []string{".", "tmp", "temp"}

// allowedExtensions is the image extension allow-list; only images
// participate in the capture/search contract.
var allowedExtensions = map[string]bool{
	".webp": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
}

// eligiblePath reports whether path should be considered for ingestion:
// a non-temp file with an allowed image extension.
func eligiblePath(path string) bool {
	name := filepath.Base(path)
	for _, prefix := range tempNamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// sniffFileType detects MIME by content sniffing rather than trusting
// the extension.
func sniffFileType(data []byte) (fileType string, isImage bool) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", false
	}
	return kind.Extension, filetype.IsImage(data)
}
