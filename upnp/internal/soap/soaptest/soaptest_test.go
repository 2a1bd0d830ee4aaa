package soaptest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericyan/dlnacast/upnp/internal/soap"
)

func TestParseAction(t *testing.T) {
	a, err := ParseAction(`"urn:schemas-upnp-org:service:ConnectionManager:1#PrepareForConnection"`)
	require.NoError(t, err)
	assert.Equal(t, &soap.Action{Namespace: "urn:schemas-upnp-org:service:ConnectionManager:1", Name: "PrepareForConnection"}, a)

	for _, s := range []string{"", `"no-hash"`, `"#Play"`} {
		_, err := ParseAction(s)
		assert.Error(t, err, s)
	}
}

func TestParseRequestActionMismatch(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<u:Stop xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><InstanceID>0</InstanceID></u:Stop>` +
		`</s:Body></s:Envelope>`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header["SOAPACTION"] = []string{`"urn:schemas-upnp-org:service:AVTransport:1#Play"`}

	_, err := ParseRequest(r)
	assert.Error(t, err)
}

func TestWriteFault(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteFault(w, &soap.Error{Code: 714, Description: "Illegal <MIME>"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, soap.ContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, &soap.Error{Code: 714, Description: "Illegal <MIME>"}, soap.ParseFault(w.Body.Bytes()))
}

func TestWriteResponse(t *testing.T) {
	action := &soap.Action{Namespace: "urn:schemas-upnp-org:service:AVTransport:1", Name: "GetTransportInfo"}

	w := httptest.NewRecorder()
	require.NoError(t, WriteResponse(w, action, soap.Arg{Name: "CurrentTransportState", Value: "PLAYING"}))

	assert.Equal(t, http.StatusOK, w.Code)
	resp, err := soap.ParseResponse(w.Body.Bytes(), action)
	require.NoError(t, err)
	assert.Equal(t, "PLAYING", resp.Args["CurrentTransportState"])
}
