package av

import (
	"net/url"

	"github.com/ericyan/dlnacast/upnp"
)

// Control paths used when a renderer's description is not available.
const (
	DefaultConnectionManagerPath = "/upnp/control/ConnectionManager1"
	DefaultAVTransportPath       = "/upnp/control/AVTransport1"
)

// Endpoints are the control URLs of a renderer.
type Endpoints struct {
	ConnectionManager *url.URL
	AVTransport       *url.URL
}

// DefaultEndpoints returns the conventional control URLs on the host of
// base.
func DefaultEndpoints(base *url.URL) Endpoints {
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	return Endpoints{
		ConnectionManager: root.JoinPath(DefaultConnectionManagerPath),
		AVTransport:       root.JoinPath(DefaultAVTransportPath),
	}
}

// ResolveEndpoints returns the control URLs advertised in desc, fetched
// from location. Services missing from desc, or a nil desc, get the
// default control URLs.
func ResolveEndpoints(desc *upnp.DeviceDescription, location *url.URL) Endpoints {
	ep := DefaultEndpoints(location)
	if desc == nil {
		return ep
	}

	if u, ok := controlURL(desc, location, "urn:schemas-upnp-org:service:ConnectionManager:"); ok {
		ep.ConnectionManager = u
	}
	if u, ok := controlURL(desc, location, "urn:schemas-upnp-org:service:AVTransport:"); ok {
		ep.AVTransport = u
	}

	return ep
}

func controlURL(desc *upnp.DeviceDescription, location *url.URL, prefix string) (*url.URL, bool) {
	svc, ok := desc.Service(prefix)
	if !ok || svc.ControlURL == "" {
		return nil, false
	}

	u, err := desc.ResolveURL(location, svc.ControlURL)
	if err != nil {
		return nil, false
	}

	return u, true
}
