package dlnacast

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/sirupsen/logrus"
)

// MediaFile is a playable file found directly under the media root.
type MediaFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SupportedExtensions lists the file extensions the catalog picks up.
var SupportedExtensions = []string{"mp4", "mkv", "avi", "mp3"}

var mimeTypes = map[string]string{
	"mp4": "video/mp4",
	"mkv": "video/x-matroska",
	"avi": "video/x-msvideo",
	"mp3": "audio/mpeg",
	"srt": "application/x-subrip",
}

// DefaultMimeType is used for extensions missing from the MIME table.
const DefaultMimeType = "application/octet-stream"

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsSupported reports whether name has one of the supported extensions.
// The comparison is case-insensitive.
func IsSupported(name string) bool {
	ext := extension(name)
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}

	return false
}

// MimeType returns the content type for name based on its extension.
func MimeType(name string) string {
	if t, ok := mimeTypes[extension(name)]; ok {
		return t
	}

	return DefaultMimeType
}

// MimeType returns the content type of the media file.
func (m MediaFile) MimeType() string {
	return MimeType(m.Name)
}

// IsAudio reports whether the media file carries audio only.
func (m MediaFile) IsAudio() bool {
	return strings.HasPrefix(m.MimeType(), "audio/")
}

// URL returns the address under which the media endpoint at base serves
// the file.
func (m MediaFile) URL(base *url.URL) *url.URL {
	u := *base
	u.Path = path.Join("/", base.Path, "media", m.Name)
	u.RawPath = path.Join("/", base.EscapedPath(), "media", url.PathEscape(m.Name))
	u.RawQuery = ""
	u.Fragment = ""

	return &u
}

// ListMedia returns the supported files directly under root, in natural
// name order. A directory that cannot be read yields an empty list.
func ListMedia(root string) []MediaFile {
	files := make([]MediaFile, 0)

	entries, err := os.ReadDir(root)
	if err != nil {
		logrus.WithError(err).WithField("dir", root).Warn("Cannot read media directory")
		return files
	}

	for _, entry := range entries {
		if !IsSupported(entry.Name()) {
			continue
		}

		p := filepath.Join(root, entry.Name())
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}

		files = append(files, MediaFile{Name: entry.Name(), Path: p})
	}

	sort.Slice(files, func(i, j int) bool {
		return natural.Less(files[i].Name, files[j].Name)
	})

	return files
}
