package types

// DLNA.ORG_FLAGS advertising streaming transfer mode, background
// transfer mode, connection stalling and DLNA v1.5.
const DefaultDLNAFlags = "01700000000000000000000000000000"

// ProtocolInfo is the four-field protocolInfo string used by the
// ConnectionManager service and in DIDL-Lite res elements, in the form of
// protocol:network:contentFormat:additionalInfo.
type ProtocolInfo struct {
	Protocol       string
	Network        string
	ContentFormat  string
	AdditionalInfo string
}

// HTTPGet returns the protocolInfo for content of the given MIME type
// pulled by the renderer over HTTP.
func HTTPGet(mimeType string) *ProtocolInfo {
	return &ProtocolInfo{
		Protocol:       "http-get",
		Network:        "*",
		ContentFormat:  mimeType,
		AdditionalInfo: "DLNA.ORG_OP=01;DLNA.ORG_FLAGS=" + DefaultDLNAFlags,
	}
}

// String returns the protocolInfo string.
func (pi *ProtocolInfo) String() string {
	return pi.Protocol + ":" + pi.Network + ":" + pi.ContentFormat + ":" + pi.AdditionalInfo
}

// ContentFeatures returns the value of the contentFeatures.dlna.org HTTP
// header, which is the additionalInfo field.
func (pi *ProtocolInfo) ContentFeatures() string {
	return pi.AdditionalInfo
}
