package upnp

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ericyan/dlnacast/upnp/internal/ssdp"
)

// MediaRendererURN is the device type searched for by default.
const MediaRendererURN = "urn:schemas-upnp-org:device:MediaRenderer:1"

// Defaults of SearchOptions.
const (
	DefaultSearchWindow   = 10 * time.Second
	DefaultReceiveTimeout = time.Second
	DefaultMX             = 2
)

// DiscoveredDevice is a device that answered a search. Headers missing
// from the answer are left nil or empty.
type DiscoveredDevice struct {
	Location *url.URL
	USN      string
	ST       string
}

// SearchOptions configures Discover. Zero values fall back to the SSDP
// group and the package defaults.
type SearchOptions struct {
	Address      string
	Port         int
	SearchTarget string
	// DeviceType must occur in a response for it to be accepted. An empty
	// DeviceType accepts every response.
	DeviceType     string
	MX             int
	Window         time.Duration
	ReceiveTimeout time.Duration
	// Interface names the network interface to search on. Empty uses the
	// system default.
	Interface string

	Log logrus.FieldLogger
}

func (opts *SearchOptions) setDefaults() {
	if opts.Address == "" {
		opts.Address = ssdp.DefaultAddr
	}
	if opts.Port == 0 {
		opts.Port = ssdp.DefaultPort
	}
	if opts.SearchTarget == "" {
		opts.SearchTarget = ssdp.All
	}
	if opts.MX <= 0 {
		opts.MX = DefaultMX
	}
	if opts.Window <= 0 {
		opts.Window = DefaultSearchWindow
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = DefaultReceiveTimeout
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
}

// TransportError reports that the search could not be sent at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "discovery " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Discover sends a single M-SEARCH and collects the devices answering
// within the search window, in the order they first answered. Devices are
// identified by USN; later answers with a known USN are dropped.
//
// Unreadable answers are skipped. If ctx is done before the window ends,
// the devices collected so far are returned along with ctx.Err().
func Discover(ctx context.Context, opts SearchOptions) ([]DiscoveredDevice, error) {
	opts.setDefaults()
	log := opts.Log.WithField("st", opts.SearchTarget)

	var ifi *net.Interface
	if opts.Interface != "" {
		var err error
		ifi, err = net.InterfaceByName(opts.Interface)
		if err != nil {
			return nil, &TransportError{"bind", err}
		}
	}

	s, err := ssdp.NewSearcher(ssdp.HostPort(opts.Address, opts.Port), ifi)
	if err != nil {
		return nil, &TransportError{"bind", err}
	}
	defer s.Close()

	// Closing the socket unblocks a pending receive on cancellation.
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	if err := s.Send(opts.SearchTarget, opts.MX); err != nil {
		return nil, &TransportError{"send", err}
	}
	log.WithField("local", s.LocalAddr()).Debug("Sent M-SEARCH")

	devices := make([]DiscoveredDevice, 0)
	seen := make(map[string]bool)

	end := time.Now().Add(opts.Window)
	for {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		now := time.Now()
		if !now.Before(end) {
			break
		}

		deadline := now.Add(opts.ReceiveTimeout)
		if deadline.After(end) {
			deadline = end
		}

		data, from, err := s.Receive(deadline)
		if err != nil {
			if ctx.Err() != nil {
				return devices, ctx.Err()
			}
			if ssdp.IsTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}

			log.WithError(err).Debug("Failed to receive SSDP response")
			continue
		}

		if opts.DeviceType != "" && !strings.Contains(string(data), opts.DeviceType) {
			continue
		}

		resp, err := ssdp.ParseResponse(data)
		if err != nil {
			log.WithError(err).WithField("from", from).Debug("Malformed SSDP response")
			continue
		}

		dev := DiscoveredDevice{
			USN: resp.Header.Get("USN"),
			ST:  resp.Header.Get("ST"),
		}
		if loc := resp.Header.Get("LOCATION"); loc != "" {
			if u, err := url.Parse(loc); err == nil {
				dev.Location = u
			} else {
				log.WithError(err).WithField("from", from).Debug("Invalid LOCATION")
			}
		}

		if seen[dev.USN] {
			continue
		}
		seen[dev.USN] = true
		devices = append(devices, dev)

		log.WithFields(logrus.Fields{"usn": dev.USN, "location": dev.Location}).Debug("Discovered device")
	}

	return devices, nil
}
