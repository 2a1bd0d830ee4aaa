package av

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ericyan/dlnacast"
	"github.com/ericyan/dlnacast/upnp/internal/soap"
	"github.com/ericyan/dlnacast/upnp/internal/types"
)

// DefaultTimeout bounds each control request of a cast.
const DefaultTimeout = 10 * time.Second

// Caster makes a renderer play media served by the media endpoint.
type Caster struct {
	Builder EnvelopeBuilder
	// Timeout bounds each control request on top of the context passed to
	// Cast. Zero disables it.
	Timeout time.Duration
	// Probe enables looking up the media duration with ffprobe.
	Probe bool

	client *soap.Client
	log    logrus.FieldLogger
}

// NewCaster returns a caster sending requests through hc, or a pooled
// client if hc is nil.
func NewCaster(hc *http.Client, log logrus.FieldLogger) *Caster {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Caster{
		Builder: SOAPBuilder{},
		Timeout: DefaultTimeout,
		Probe:   true,
		client:  soap.NewClient(hc),
		log:     log,
	}
}

// Cast prepares a connection on the renderer, hands it mediaURL and
// starts playback, in that order. The first failing step ends the cast
// with a *CastError; later steps are not attempted and nothing is retried.
func (c *Caster) Cast(ctx context.Context, ep Endpoints, media dlnacast.MediaFile, mediaURL *url.URL) error {
	if ep.ConnectionManager == nil || ep.AVTransport == nil {
		return errors.New("cast: missing control URL")
	}

	log := c.log.WithFields(logrus.Fields{"media": media.Name, "url": mediaURL.String()})

	protocolInfo := types.HTTPGet(media.MimeType()).String()
	if err := c.call(ctx, StagePrepare, ep.ConnectionManager, c.Builder.PrepareForConnection(protocolInfo)); err != nil {
		return err
	}
	log.Debug("Connection prepared")

	var duration time.Duration
	if c.Probe {
		d, err := probeDuration(media.Path)
		if err != nil {
			log.WithError(err).Debug("Cannot probe media duration")
		}
		duration = d
	}

	metadata, err := Metadata(media, mediaURL, duration)
	if err != nil {
		return newCastError(StageSetURI, err)
	}

	if err := c.call(ctx, StageSetURI, ep.AVTransport, c.Builder.SetAVTransportURI(mediaURL.String(), metadata)); err != nil {
		return err
	}
	log.Debug("Transport URI set")

	if err := c.call(ctx, StagePlay, ep.AVTransport, c.Builder.Play()); err != nil {
		return err
	}
	log.Info("Playback started")

	return nil
}

func (c *Caster) call(ctx context.Context, stage Stage, controlURL *url.URL, req *soap.Request) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	c.log.WithFields(logrus.Fields{"action": req.Action.Name, "url": controlURL.String()}).Debug("Sending control request")

	if _, err := c.client.Call(ctx, controlURL.String(), req); err != nil {
		return newCastError(stage, err)
	}

	return nil
}
