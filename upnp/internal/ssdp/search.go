package ssdp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"
)

// MulticastTTL is the hop limit of search requests.
const MulticastTTL = 4

// SearchRequest returns the M-SEARCH datagram for st sent to group.
func SearchRequest(group string, st string, mx int) ([]byte, error) {
	req := &http.Request{
		Method:     "M-SEARCH",
		URL:        &url.URL{Opaque: "*"},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Host:       group,
		Header: http.Header{
			"MAN":        []string{`"ssdp:discover"`},
			"MX":         []string{strconv.Itoa(mx)},
			"ST":         []string{st},
			"User-Agent": []string{ServerName},
		},
	}

	buf := new(bytes.Buffer)
	if err := req.Write(buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ParseResponse parses a search response datagram.
func ParseResponse(data []byte) (*http.Response, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	return resp, nil
}

// Searcher is the unicast socket a control point sends M-SEARCH requests
// from and receives the replies on.
type Searcher struct {
	conn  *net.UDPConn
	group *net.UDPAddr
}

// NewSearcher binds an ephemeral UDP port for searching group. If ifi is
// not nil, the socket is bound to its first IPv4 address and multicast
// is sent through it.
func NewSearcher(group string, ifi *net.Interface) (*Searcher, error) {
	gaddr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, err
	}

	laddr := &net.UDPAddr{IP: net.IPv4zero}
	if ifi != nil {
		ip, err := interfaceIPv4(ifi)
		if err != nil {
			return nil, err
		}
		laddr.IP = ip
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(MulticastTTL); err != nil {
		conn.Close()
		return nil, err
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Searcher{conn: conn, group: gaddr}, nil
}

// LocalAddr returns the address replies are expected on.
func (s *Searcher) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Send multicasts a single M-SEARCH for st.
func (s *Searcher) Send(st string, mx int) error {
	msg, err := SearchRequest(s.group.String(), st, mx)
	if err != nil {
		return err
	}

	_, err = s.conn.WriteTo(msg, s.group)
	return err
}

// Receive reads the next datagram, waiting no later than deadline.
func (s *Searcher) Receive(deadline time.Time) ([]byte, *net.UDPAddr, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, err
	}

	buf := make([]byte, MTU)
	n, raddr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}

	return buf[:n], raddr, nil
}

func (s *Searcher) Close() error {
	return s.conn.Close()
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func interfaceIPv4(ifi *net.Interface) (net.IP, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip := ipnet.IP.To4(); ip != nil {
				return ip, nil
			}
		}
	}

	return nil, fmt.Errorf("interface %s has no IPv4 address", ifi.Name)
}
