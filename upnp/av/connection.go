package av

import (
	"github.com/ericyan/dlnacast/upnp/internal/soap"
)

// Action-specific errors defined in ConnectionManager:1 service spec.
var (
	ErrIncompatibleProtocolInfo = &soap.Error{Code: 701, Description: "Incompatible protocol info"}
	ErrIncompatibleDirections   = &soap.Error{Code: 702, Description: "Incompatible directions"}
	ErrInsufficientResources    = &soap.Error{Code: 703, Description: "Insufficient network resources"}
	ErrLocalRestrictions        = &soap.Error{Code: 704, Description: "Local restrictions"}
	ErrAccessDenied             = &soap.Error{Code: 705, Description: "Access denied"}
	ErrInvalidConnectionRef     = &soap.Error{Code: 706, Description: "Invalid connection reference"}
)

// PrepareForConnection asks the renderer to get ready for content of
// protocolInfo pushed to its input. No peer connection manager is
// involved.
//
// Spec: http://upnp.org/specs/av/UPnP-av-ConnectionManager-v1-Service.pdf
func (SOAPBuilder) PrepareForConnection(protocolInfo string) *soap.Request {
	return soap.NewRequest(ConnectionManagerURN, "PrepareForConnection",
		soap.Arg{Name: "RemoteProtocolInfo", Value: protocolInfo},
		soap.Arg{Name: "PeerConnectionManager", Value: ""},
		soap.Arg{Name: "PeerConnectionID", Value: "0"},
		soap.Arg{Name: "Direction", Value: "Input"},
	)
}
