package av

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/ffprobe"

	"github.com/ericyan/dlnacast"
	"github.com/ericyan/dlnacast/upnp/internal/didl"
	"github.com/ericyan/dlnacast/upnp/internal/types"
)

// probeDuration is replaced in tests.
var probeDuration = func(path string) (time.Duration, error) {
	info, err := ffprobe.Run(path)
	if err != nil {
		return 0, err
	}

	return info.Duration()
}

// Metadata returns the DIDL-Lite document describing media served at
// mediaURL. A zero duration is left out.
func Metadata(media dlnacast.MediaFile, mediaURL *url.URL, duration time.Duration) (string, error) {
	class := didl.ClassVideo
	if media.IsAudio() {
		class = didl.ClassAudio
	}

	res := didl.Resource{
		ProtocolInfo: types.HTTPGet(media.MimeType()).String(),
		URL:          mediaURL.String(),
	}
	if duration > 0 {
		res.Duration = types.FormatDuration(duration)
	}
	if fi, err := os.Stat(media.Path); err == nil {
		res.Size = uint64(fi.Size())
	}

	doc := didl.NewDocument(didl.Item{
		ID:         "0",
		ParentID:   "-1",
		Restricted: "1",
		Title:      strings.TrimSuffix(media.Name, filepath.Ext(media.Name)),
		Class:      class,
		Resources:  []didl.Resource{res},
	})

	b, err := doc.MarshalText()
	if err != nil {
		return "", err
	}

	return string(b), nil
}
