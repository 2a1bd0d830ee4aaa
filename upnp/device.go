package upnp

import (
	"io"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

// MediaServerURN is the device type the endpoint describes itself as.
const MediaServerURN = "urn:schemas-upnp-org:device:MediaServer:1"

// Device is the self-description served at /description.xml and
// advertised over SSDP.
type Device struct {
	Name string

	udn uuid.UUID
}

// NewDevice returns a device with the friendly name. Its UDN is derived
// from the name, so it is stable across restarts.
func NewDevice(name string) *Device {
	return &Device{
		Name: name,
		udn:  uuid.NewMD5(uuid.NameSpaceURL, []byte("dlnacast:"+MediaServerURN+":"+name)),
	}
}

func (dev *Device) UDN() string {
	return "uuid:" + dev.udn.String()
}

func (dev *Device) URN() string {
	return MediaServerURN
}

// ServiceURNs returns nil: the device only publishes its description and
// media, it does not implement any UPnP services.
func (dev *Device) ServiceURNs() []string {
	return nil
}

const deviceTemplate = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion>
    <major>1</major>
    <minor>0</minor>
  </specVersion>
  <device>
    <deviceType>{{.URN}}</deviceType>
    <UDN>{{.UDN}}</UDN>
    <friendlyName>{{escape .Name}}</friendlyName>
    <manufacturer>dlnacast</manufacturer>
    <modelName>dlnacast</modelName>
    <modelDescription>DLNA media controller written in Go</modelDescription>
    <modelNumber>0.1</modelNumber>
    <dlna:X_DLNADOC xmlns:dlna="urn:schemas-dlna-org:device-1-0">DMS-1.50</dlna:X_DLNADOC>
    <serviceList>
    {{- range .ServiceURNs }}
      <service>
        <serviceType>{{.}}</serviceType>
      </service>
    {{- end}}
    </serviceList>
  </device>
</root>`

var deviceTpl = template.Must(template.New("device").Funcs(template.FuncMap{
	"escape": func(s string) string {
		var b strings.Builder
		template.HTMLEscape(&b, []byte(s))
		return b.String()
	},
}).Parse(deviceTemplate))

// WriteDescription writes the UPnP device description document.
func (dev *Device) WriteDescription(w io.Writer) error {
	return deviceTpl.Execute(w, dev)
}
