package av

import (
	"github.com/ericyan/dlnacast/upnp/internal/soap"
)

// Action-specific errors defined in AVTransport:1 service spec.
var (
	ErrTransitionNotAvailable = &soap.Error{Code: 701, Description: "Transition not available"}
	ErrNoContents             = &soap.Error{Code: 702, Description: "No contents"}
	ErrPlaySpeedNotSupported  = &soap.Error{Code: 717, Description: "Play speed not supported"}
	ErrResourceNotFound       = &soap.Error{Code: 716, Description: "Resource not found"}
	ErrInvalidInstanceID      = &soap.Error{Code: 718, Description: "Invalid InstanceID"}
	ErrIllegalMIMEType        = &soap.Error{Code: 714, Description: "Illegal MIME-type"}
	ErrContentBusy            = &soap.Error{Code: 715, Description: "Content 'BUSY'"}
)

// InstanceID of the only virtual transport the controller drives.
const InstanceID = "0"

// SetAVTransportURI points the renderer at uri, described by the
// DIDL-Lite metadata.
//
// Spec: http://upnp.org/specs/av/UPnP-av-AVTransport-v1-Service.pdf
func (SOAPBuilder) SetAVTransportURI(uri, metadata string) *soap.Request {
	return soap.NewRequest(AVTransportURN, "SetAVTransportURI",
		soap.Arg{Name: "InstanceID", Value: InstanceID},
		soap.Arg{Name: "CurrentURI", Value: uri},
		soap.Arg{Name: "CurrentURIMetaData", Value: metadata},
	)
}

// Play starts playback at normal speed.
func (SOAPBuilder) Play() *soap.Request {
	return soap.NewRequest(AVTransportURN, "Play",
		soap.Arg{Name: "InstanceID", Value: InstanceID},
		soap.Arg{Name: "Speed", Value: "1"},
	)
}
