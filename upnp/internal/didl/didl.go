package didl

import "encoding/xml"

// XML namespaces used by DIDL-Lite documents.
const (
	NamespaceDIDL = "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
	NamespaceDC   = "http://purl.org/dc/elements/1.1/"
	NamespaceUPnP = "urn:schemas-upnp-org:metadata-1-0/upnp/"
)

// Item classes.
const (
	ClassVideo = "object.item.videoItem"
	ClassAudio = "object.item.audioItem.musicTrack"
)

// Resource represents a res element.
type Resource struct {
	ProtocolInfo string `xml:"protocolInfo,attr"`
	Size         uint64 `xml:"size,attr,omitempty"`
	Duration     string `xml:"duration,attr,omitempty"`
	URL          string `xml:",chardata"`
}

// Item represents an item element.
type Item struct {
	ID         string     `xml:"id,attr"`
	ParentID   string     `xml:"parentID,attr"`
	Restricted string     `xml:"restricted,attr"`
	Title      string     `xml:"dc:title"`
	Class      string     `xml:"upnp:class"`
	Resources  []Resource `xml:"res"`
}

// Document represents a DIDL-Lite document.
type Document struct {
	XMLName   xml.Name `xml:"DIDL-Lite"`
	Xmlns     string   `xml:"xmlns,attr"`
	XmlnsDC   string   `xml:"xmlns:dc,attr"`
	XmlnsUPnP string   `xml:"xmlns:upnp,attr"`
	Items     []Item   `xml:"item"`
}

// NewDocument returns a document holding the given items.
func NewDocument(items ...Item) *Document {
	return &Document{
		Xmlns:     NamespaceDIDL,
		XmlnsDC:   NamespaceDC,
		XmlnsUPnP: NamespaceUPnP,
		Items:     items,
	}
}

// MarshalText implements encoding.TextMarshaler. The result is meant to be
// passed as a SOAP argument, which escapes it once more.
func (doc *Document) MarshalText() ([]byte, error) {
	return xml.Marshal(doc)
}
