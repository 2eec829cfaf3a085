package window

import (
	_ "embed"
	"encoding/base64"
	"os"

	"deskshell/internal/common/fsutil"
)

//go:embed offline.html
var defaultOfflinePage []byte

// OfflinePage returns the contents of the page at path, or the built-in page
// when path is empty or unreadable.
func OfflinePage(path string) []byte {
	if path != "" && fsutil.IsFile(path) {
		if b, err := os.ReadFile(path); err == nil {
			return b
		}
	}
	return defaultOfflinePage
}

// OfflineURL returns a URL for the offline page: a file URL when path names an
// existing file, otherwise a data URL of the built-in page.
func OfflineURL(path string) string {
	if path != "" && fsutil.IsFile(path) {
		if u, err := fsutil.FileURL(path); err == nil {
			return u
		}
	}
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString(defaultOfflinePage)
}
