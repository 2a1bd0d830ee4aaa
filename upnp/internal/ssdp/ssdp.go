package ssdp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultAddr           = "239.255.255.250"
	DefaultPort           = 1900
	MTU                   = 8192
	AliveInterval         = 15 * time.Minute
	CacheControlDirective = "max-age=1800"
	ServerName            = runtime.GOOS + "/" + runtime.GOARCH + " UPnP/1.0 dlnacast/0.1"

	// MaxMX caps the response delay requested by M-SEARCH.
	MaxMX = 5
)

// Well-known search targets.
const (
	All        = "ssdp:all"
	RootDevice = "upnp:rootdevice"
)

// Notification sub types.
const (
	Alive  = "ssdp:alive"
	ByeBye = "ssdp:byebye"
)

// HostPort returns the "host:port" form of a multicast group.
func HostPort(addr string, port int) string {
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

type Device interface {
	// Returns the Unique Device Name, which will be the prefix of the USN
	// header field in all discovery messages.
	UDN() string
	// Returns the URN of the device.
	URN() string
	// Returns the URNs of all services provided by the device.
	ServiceURNs() []string
}

// Server advertises a device on the multicast group and answers
// M-SEARCH requests for it.
type Server struct {
	dev  Device
	loc  *url.URL
	addr *net.UDPAddr
	ifi  *net.Interface
	log  logrus.FieldLogger

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool
	done   chan struct{}
	bootID string
}

// NewServer returns a SSDP server for the given device that announces
// the URL to its UPnP description on group. A nil ifi joins the group on
// the system default interface.
func NewServer(dev Device, loc *url.URL, group string, ifi *net.Interface, log logrus.FieldLogger) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Server{
		dev:    dev,
		loc:    loc,
		addr:   addr,
		ifi:    ifi,
		log:    log,
		done:   make(chan struct{}),
		bootID: strconv.FormatInt(time.Now().Unix(), 10),
	}, nil
}

func (srv *Server) ListenAndServe() error {
	conn, err := net.ListenMulticastUDP("udp4", srv.ifi, srv.addr)
	if err != nil {
		return fmt.Errorf("ssdp: listen on %s: %w", srv.addr, err)
	}
	conn.SetReadBuffer(MTU)

	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		conn.Close()
		return nil
	}
	srv.conn = conn
	srv.mu.Unlock()

	srv.log.WithField("addr", conn.LocalAddr()).Info("SSDP server listening")

	if err := srv.notify(Alive); err != nil {
		srv.log.WithError(err).Warn("Failed to send alive notification")
	}
	go srv.keepAlive()

	buf := make([]byte, MTU)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if err, ok := err.(net.Error); ok && err.Timeout() {
				continue
			}

			return err
		}

		req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(buf[:n])))
		if err != nil {
			srv.log.WithError(err).Debug("Failed to parse SSDP request")
			continue
		}

		if err := srv.handleRequest(req, raddr); err != nil {
			srv.log.WithError(err).WithField("from", raddr).Debug("Ignored SSDP request")
		}
	}
}

func (srv *Server) keepAlive() {
	ticker := time.NewTicker(AliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-srv.done:
			return
		case <-ticker.C:
			if err := srv.notify(Alive); err != nil {
				srv.log.WithError(err).Warn("Failed to send alive notification")
			}
		}
	}
}

// Close announces the device is leaving and stops the server.
func (srv *Server) Close() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.closed {
		return nil
	}
	srv.closed = true
	close(srv.done)

	if srv.conn == nil {
		return nil
	}

	if err := srv.writeNotifications(ByeBye); err != nil {
		srv.log.WithError(err).Warn("Failed to send byebye notification")
	}

	return srv.conn.Close()
}

// targets maps every notification type of the device to its USN.
func (srv *Server) targets() map[string]string {
	udn := srv.dev.UDN()
	caps := map[string]string{udn: udn}
	for _, urn := range append([]string{RootDevice, srv.dev.URN()}, srv.dev.ServiceURNs()...) {
		caps[urn] = udn + "::" + urn
	}

	return caps
}

func (srv *Server) commonHeader() http.Header {
	return http.Header{
		"CACHE-CONTROL":     []string{CacheControlDirective},
		"LOCATION":          []string{srv.loc.String()},
		"SERVER":            []string{ServerName},
		"BOOTID.UPNP.ORG":   []string{srv.bootID},
		"CONFIGID.UPNP.ORG": []string{"1"},
	}
}

// notifications returns the NOTIFY messages announcing nts.
func (srv *Server) notifications(nts string) ([]*http.Request, error) {
	switch nts {
	case Alive, ByeBye:
	case "ssdp:update":
		return nil, fmt.Errorf("NTS %s not implemented", nts)
	default:
		return nil, fmt.Errorf("invalid NTS: %s", nts)
	}

	var reqs []*http.Request
	for t, usn := range srv.targets() {
		req := &http.Request{
			Method:     "NOTIFY",
			URL:        &url.URL{Opaque: "*"},
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Host:       srv.addr.String(),
			Header:     srv.commonHeader(),
		}

		req.Header["NTS"] = []string{nts}
		req.Header["NT"] = []string{t}
		req.Header["USN"] = []string{usn}
		if nts == ByeBye {
			delete(req.Header, "LOCATION")
			delete(req.Header, "CACHE-CONTROL")
		}

		reqs = append(reqs, req)
	}

	return reqs, nil
}

func (srv *Server) notify(nts string) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.closed {
		return nil
	}

	return srv.writeNotifications(nts)
}

func (srv *Server) writeNotifications(nts string) error {
	reqs, err := srv.notifications(nts)
	if err != nil {
		return err
	}

	for _, req := range reqs {
		buf := new(bytes.Buffer)
		req.Write(buf)

		if _, err := srv.conn.WriteTo(buf.Bytes(), srv.addr); err != nil {
			return err
		}
	}

	return nil
}

// responses returns the unicast replies to an M-SEARCH for st.
func (srv *Server) responses(st string) []*http.Response {
	var resps []*http.Response
	for t, usn := range srv.targets() {
		if st != t && st != All {
			continue
		}

		resp := &http.Response{
			StatusCode:    http.StatusOK,
			ProtoMajor:    1,
			ProtoMinor:    1,
			Header:        srv.commonHeader(),
			ContentLength: -1,
			Uncompressed:  true,
		}

		resp.Header["EXT"] = []string{""}
		resp.Header["ST"] = []string{t}
		resp.Header["USN"] = []string{usn}

		resps = append(resps, resp)
	}

	return resps
}

func (srv *Server) handleRequest(req *http.Request, raddr *net.UDPAddr) error {
	if req.Method != "M-SEARCH" {
		return fmt.Errorf("unsupported method: %s", req.Method)
	}

	if man := req.Header.Get("MAN"); man != `"ssdp:discover"` {
		return fmt.Errorf("unexpected MAN: %s", man)
	}

	st := req.Header.Get("ST")
	if st == "" {
		return errors.New("ST is empty")
	}

	srv.log.WithFields(logrus.Fields{"from": raddr, "st": st}).Debug("Received M-SEARCH")

	resps := srv.responses(st)
	if len(resps) == 0 {
		return fmt.Errorf("ST %s not found", st)
	}

	delay := time.Duration(0)
	if limit := searchDelay(req.Header.Get("MX")); limit > 0 {
		delay = jitter(limit)
	}

	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-srv.done:
			return
		case <-t.C:
		}

		if err := srv.reply(resps, raddr); err != nil {
			srv.log.WithError(err).WithField("to", raddr).Debug("Failed to answer M-SEARCH")
		}
	}()

	return nil
}

// jitter picks the wait before answering, in [0, limit).
var jitter = func(limit time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(limit)))
}

// searchDelay returns the upper bound of the response delay for the MX
// header value. Missing or invalid values get one second.
func searchDelay(mx string) time.Duration {
	n, err := strconv.Atoi(mx)
	if err != nil || n < 0 {
		return time.Second
	}
	if n > MaxMX {
		n = MaxMX
	}

	return time.Duration(n) * time.Second
}

func (srv *Server) reply(resps []*http.Response, raddr *net.UDPAddr) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.closed {
		return nil
	}

	for _, resp := range resps {
		buf := new(bytes.Buffer)
		resp.Write(buf)

		if _, err := srv.conn.WriteTo(buf.Bytes(), raddr); err != nil {
			return err
		}
	}

	return nil
}
