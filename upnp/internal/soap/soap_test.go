package soap_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericyan/dlnacast/upnp/internal/soap"
	"github.com/ericyan/dlnacast/upnp/internal/soap/soaptest"
)

const avTransport = "urn:schemas-upnp-org:service:AVTransport:1"

func TestNewHTTPRequest(t *testing.T) {
	req := soap.NewRequest(avTransport, "SetAVTransportURI",
		soap.Arg{Name: "InstanceID", Value: "0"},
		soap.Arg{Name: "CurrentURI", Value: "http://10.0.0.2:8080/media/a&b.mp4"},
		soap.Arg{Name: "CurrentURIMetaData", Value: `<DIDL-Lite><item id="0"/></DIDL-Lite>`},
	)

	r, err := req.NewHTTPRequest(context.Background(), "http://renderer/upnp/control/AVTransport1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, []string{`"urn:schemas-upnp-org:service:AVTransport:1#SetAVTransportURI"`}, r.Header["SOAPACTION"])
	assert.Equal(t, soap.ContentType, r.Header.Get("Content-Type"))

	parsed, err := soaptest.ParseRequest(r)
	require.NoError(t, err)
	assert.Equal(t, req.Action, parsed.Action)
	assert.Equal(t, req.Args, parsed.Args)
	assert.Equal(t, "http://10.0.0.2:8080/media/a&b.mp4", parsed.Arg("CurrentURI"))
	assert.Equal(t, "", parsed.Arg("Missing"))
}

func TestParseResponse(t *testing.T) {
	body := `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
  <s:Body>
    <u:GetTransportInfoResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">
      <CurrentTransportState>PLAYING</CurrentTransportState>
      <CurrentSpeed>1</CurrentSpeed>
    </u:GetTransportInfoResponse>
  </s:Body>
</s:Envelope>`
	action := &soap.Action{Namespace: avTransport, Name: "GetTransportInfo"}

	resp, err := soap.ParseResponse([]byte(body), action)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"CurrentTransportState": "PLAYING", "CurrentSpeed": "1"}, resp.Args)
	assert.Nil(t, soap.ParseFault([]byte(body)))

	_, err = soap.ParseResponse([]byte(body), &soap.Action{Namespace: avTransport, Name: "Play"})
	assert.Error(t, err)
}

func TestParseFault(t *testing.T) {
	body := `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <s:Fault>
      <faultcode>s:Client</faultcode>
      <faultstring>UPnPError</faultstring>
      <detail>
        <UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
          <errorCode>716</errorCode>
          <errorDescription>Resource not found</errorDescription>
        </UPnPError>
      </detail>
    </s:Fault>
  </s:Body>
</s:Envelope>`

	assert.Equal(t, &soap.Error{Code: 716, Description: "Resource not found"}, soap.ParseFault([]byte(body)))

	bare := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault><faultstring>boom</faultstring></s:Fault></s:Body></s:Envelope>`
	assert.Equal(t, &soap.Error{Code: 0, Description: "boom"}, soap.ParseFault([]byte(bare)))

	assert.Nil(t, soap.ParseFault([]byte("not xml")))
}

func TestErrorIs(t *testing.T) {
	parsed := &soap.Error{Code: 402, Description: "Invalid Args"}

	assert.True(t, errors.Is(parsed, soap.ErrInvalidArgs))
	assert.True(t, errors.Is(fmt.Errorf("call: %w", parsed), soap.ErrInvalidArgs))
	assert.False(t, errors.Is(parsed, soap.ErrInvalidAction))
	assert.False(t, errors.Is(parsed, errors.New("Invalid Args")))
}

func TestClientCall(t *testing.T) {
	var got *soap.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := soaptest.ParseRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got = req

		if req.Action.Name == "Seek" {
			soaptest.WriteFault(w, soap.ErrActionNotImplemented)
			return
		}
		soaptest.WriteResponse(w, req.Action, soap.Arg{Name: "Echo", Value: req.Arg("Speed")})
	}))
	defer srv.Close()

	c := soap.NewClient(srv.Client())

	resp, err := c.Call(context.Background(), srv.URL, soap.NewRequest(avTransport, "Play",
		soap.Arg{Name: "InstanceID", Value: "0"},
		soap.Arg{Name: "Speed", Value: "1"},
	))
	require.NoError(t, err)
	assert.Equal(t, "Play", got.Action.Name)
	assert.Equal(t, "1", resp.Args["Echo"])

	_, err = c.Call(context.Background(), srv.URL, soap.NewRequest(avTransport, "Seek"))
	var httpErr *soap.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	require.NotNil(t, httpErr.Fault)
	assert.Equal(t, 602, httpErr.Fault.Code)
	assert.True(t, errors.Is(err, soap.ErrActionNotImplemented))
	assert.False(t, errors.Is(err, soap.ErrInvalidArgs))
	assert.Contains(t, string(httpErr.Body), "<errorCode>602</errorCode>")
}

func TestClientCallPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := soap.NewClient(nil).Call(context.Background(), srv.URL, soap.NewRequest(avTransport, "Play"))
	var httpErr *soap.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Nil(t, httpErr.Fault)
	assert.Equal(t, "status 400: nope", httpErr.Error())
}

func TestClientCallEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	resp, err := soap.NewClient(nil).Call(context.Background(), srv.URL, soap.NewRequest(avTransport, "Play"))
	require.NoError(t, err)
	assert.Empty(t, resp.Args)
}
