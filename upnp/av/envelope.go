package av

import (
	"github.com/ericyan/dlnacast/upnp/internal/soap"
)

// Service types the controller talks to.
const (
	ConnectionManagerURN = "urn:schemas-upnp-org:service:ConnectionManager:1"
	AVTransportURN       = "urn:schemas-upnp-org:service:AVTransport:1"
)

// EnvelopeBuilder builds the SOAP requests of a cast.
type EnvelopeBuilder interface {
	PrepareForConnection(protocolInfo string) *soap.Request
	SetAVTransportURI(uri, metadata string) *soap.Request
	Play() *soap.Request
}

// SOAPBuilder is the EnvelopeBuilder for UPnP AV version 1 services.
type SOAPBuilder struct{}

var _ EnvelopeBuilder = SOAPBuilder{}
