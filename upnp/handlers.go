package upnp

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ericyan/dlnacast"
	"github.com/ericyan/dlnacast/upnp/internal/types"
)

const (
	descriptionRoute = "/description.xml"
	mediaRoute       = "/media"
	mediaFileRoute   = "/media/{name}"
)

// openFile is replaced in tests.
var openFile = func(name string) (http.File, error) {
	return os.Open(name)
}

type handler struct {
	dev  *Device
	root string
	log  logrus.FieldLogger
}

// NewHandler returns the router of the media endpoint. Requests are
// counted by m unless it is nil.
func NewHandler(dev *Device, mediaDir string, m *Metrics, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &handler{dev: dev, root: mediaDir, log: log}

	r := chi.NewRouter()
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Get(descriptionRoute, h.serveDescription)
	r.Get(mediaRoute, h.listMedia)
	r.Get(mediaFileRoute, h.serveMedia)

	return r
}

func (h *handler) serveDescription(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	if err := h.dev.WriteDescription(w); err != nil {
		h.log.WithError(err).Error("Failed to write device description")
	}
}

func (h *handler) listMedia(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dlnacast.ListMedia(h.root)); err != nil {
		h.log.WithError(err).Error("Failed to write media list")
	}
}

// localName reports whether name refers to a file directly under the
// media root.
func localName(name string) bool {
	return name != "" &&
		filepath.IsLocal(name) &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.Base(name) == name
}

func (h *handler) serveMedia(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		// chi matched the escaped path.
		n, err := url.PathUnescape(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		name = n
	}

	log := h.log.WithFields(logrus.Fields{"name": name, "remote": r.RemoteAddr})

	if !localName(name) {
		log.Warn("Rejected media name outside of media directory")
		http.NotFound(w, r)
		return
	}

	p := filepath.Join(h.root, name)
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		log.Debug("Media file not found")
		http.NotFound(w, r)
		return
	}

	f, err := openFile(p)
	if err != nil {
		log.WithError(err).Error("Failed to open media file")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	mimeType := dlnacast.MimeType(name)
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(name, `"`, `\"`)+`"`)
	w.Header()["transferMode.dlna.org"] = []string{"Streaming"}
	w.Header()["contentFeatures.dlna.org"] = []string{types.HTTPGet(mimeType).ContentFeatures()}

	log.WithField("range", r.Header.Get("Range")).Info("Serving media file")
	http.ServeContent(w, r, name, fi.ModTime(), f)
}
