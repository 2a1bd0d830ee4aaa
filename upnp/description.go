package upnp

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

var (
	ErrDescriptionUnavailable = errors.New("device description unavailable")
	ErrMalformedDescription   = errors.New("malformed device description")
)

// maxDescriptionSize bounds the description documents read from devices.
const maxDescriptionSize = 1 << 20

// ServiceDescriptor is one entry of a device's service list.
type ServiceDescriptor struct {
	ServiceType string `xml:"serviceType"`
	ControlURL  string `xml:"controlURL"`
	SCPDURL     string `xml:"SCPDURL"`
}

// DeviceDescription is the parsed description document of a device.
// Elements missing from the document are left empty.
type DeviceDescription struct {
	FriendlyName string
	Manufacturer string
	ModelName    string
	UDN          string
	URLBase      string
	Services     []ServiceDescriptor
}

// descriptionDocument accepts any root element name.
type descriptionDocument struct {
	URLBase string `xml:"URLBase"`
	Device  struct {
		FriendlyName string              `xml:"friendlyName"`
		Manufacturer string              `xml:"manufacturer"`
		ModelName    string              `xml:"modelName"`
		UDN          string              `xml:"UDN"`
		Services     []ServiceDescriptor `xml:"serviceList>service"`
	} `xml:"device"`
}

// ParseDescription parses a UPnP device description document. Unknown
// elements are ignored.
func ParseDescription(data []byte) (*DeviceDescription, error) {
	var doc descriptionDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescription, err)
	}

	desc := &DeviceDescription{
		FriendlyName: strings.TrimSpace(doc.Device.FriendlyName),
		Manufacturer: strings.TrimSpace(doc.Device.Manufacturer),
		ModelName:    strings.TrimSpace(doc.Device.ModelName),
		UDN:          strings.TrimSpace(doc.Device.UDN),
		URLBase:      strings.TrimSpace(doc.URLBase),
	}
	for _, svc := range doc.Device.Services {
		desc.Services = append(desc.Services, ServiceDescriptor{
			ServiceType: strings.TrimSpace(svc.ServiceType),
			ControlURL:  strings.TrimSpace(svc.ControlURL),
			SCPDURL:     strings.TrimSpace(svc.SCPDURL),
		})
	}

	return desc, nil
}

// FetchDescription retrieves and parses the description document at
// location. A nil client uses a fresh client without timeout; the
// context bounds the request.
func FetchDescription(ctx context.Context, client *http.Client, location string) (*DeviceDescription, error) {
	if client == nil {
		client = cleanhttp.DefaultClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptionUnavailable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrDescriptionUnavailable, location, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptionUnavailable, err)
	}

	return ParseDescription(data)
}

// Service returns the first service whose type starts with prefix, for
// instance "urn:schemas-upnp-org:service:AVTransport:".
func (desc *DeviceDescription) Service(prefix string) (ServiceDescriptor, bool) {
	for _, svc := range desc.Services {
		if strings.HasPrefix(svc.ServiceType, prefix) {
			return svc, true
		}
	}

	return ServiceDescriptor{}, false
}

// ResolveURL resolves ref, as found in the document, against URLBase or,
// if the document has none, the location it was fetched from.
func (desc *DeviceDescription) ResolveURL(location *url.URL, ref string) (*url.URL, error) {
	base := location
	if desc.URLBase != "" {
		u, err := url.Parse(desc.URLBase)
		if err != nil {
			return nil, err
		}
		base = u
	}
	if base == nil {
		return nil, errors.New("no base URL to resolve " + ref)
	}

	return base.Parse(ref)
}
