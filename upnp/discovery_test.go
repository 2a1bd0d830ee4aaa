package upnp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func searchResponse(location, st, usn string) []byte {
	return []byte("HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"EXT:\r\n" +
		"LOCATION: " + location + "\r\n" +
		"ST: " + st + "\r\n" +
		"USN: " + usn + "\r\n" +
		"\r\n")
}

// respond answers the first M-SEARCH received on conn with replies.
func respond(t *testing.T, conn *net.UDPConn, replies ...[]byte) <-chan *http.Request {
	t.Helper()

	got := make(chan *http.Request, 1)
	go func() {
		defer close(got)

		buf := make([]byte, 8192)
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(buf[:n])))
		if err != nil {
			return
		}
		got <- req

		for _, r := range replies {
			conn.WriteToUDP(r, raddr)
		}
	}()

	return got
}

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	return conn
}

func TestDiscover(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn := listenLoopback(t)
	defer conn.Close()

	got := respond(t, conn,
		searchResponse("http://10.0.0.7:49152/description.xml", MediaRendererURN, "uuid:tv1::"+MediaRendererURN),
		searchResponse("http://10.0.0.9:80/printer.xml", "urn:schemas-upnp-org:device:Printer:1", "uuid:printer"),
		[]byte("HTTP/1.1 garbage "+MediaRendererURN),
		searchResponse("http://10.0.0.7:49153/other.xml", MediaRendererURN, "uuid:tv1::"+MediaRendererURN),
		searchResponse("http://10.0.0.8:1400/xml/device_description.xml", MediaRendererURN, "uuid:speaker::"+MediaRendererURN),
		[]byte("HTTP/1.1 200 OK\r\nST: "+MediaRendererURN+"\r\nUSN: uuid:nolocation\r\n\r\n"),
	)

	opts := SearchOptions{
		Address:        "127.0.0.1",
		Port:           conn.LocalAddr().(*net.UDPAddr).Port,
		DeviceType:     MediaRendererURN,
		Window:         500 * time.Millisecond,
		ReceiveTimeout: 100 * time.Millisecond,
	}

	start := time.Now()
	devices, err := Discover(context.Background(), opts)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, opts.ReceiveTimeout)
	assert.Less(t, elapsed, opts.Window+opts.ReceiveTimeout+500*time.Millisecond)

	require.Len(t, devices, 3)
	assert.Equal(t, "uuid:tv1::"+MediaRendererURN, devices[0].USN)
	assert.Equal(t, "http://10.0.0.7:49152/description.xml", devices[0].Location.String())
	assert.Equal(t, MediaRendererURN, devices[0].ST)
	assert.Equal(t, "uuid:speaker::"+MediaRendererURN, devices[1].USN)
	assert.Equal(t, "uuid:nolocation", devices[2].USN)
	assert.Nil(t, devices[2].Location)

	req := <-got
	require.NotNil(t, req)
	assert.Equal(t, "M-SEARCH", req.Method)
	assert.Equal(t, `"ssdp:discover"`, req.Header.Get("MAN"))
	assert.Equal(t, "ssdp:all", req.Header.Get("ST"))
}

func TestDiscoverNoDevices(t *testing.T) {
	conn := listenLoopback(t)
	defer conn.Close()

	devices, err := Discover(context.Background(), SearchOptions{
		Address:        "127.0.0.1",
		Port:           conn.LocalAddr().(*net.UDPAddr).Port,
		Window:         200 * time.Millisecond,
		ReceiveTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}

func TestDiscoverCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn := listenLoopback(t)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Discover(ctx, SearchOptions{
		Address:        "127.0.0.1",
		Port:           conn.LocalAddr().(*net.UDPAddr).Port,
		Window:         10 * time.Second,
		ReceiveTimeout: 5 * time.Second,
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDiscoverTransportError(t *testing.T) {
	_, err := Discover(context.Background(), SearchOptions{Interface: "nonexistent0"})

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "bind", transportErr.Op)
}
