// Package soaptest implements the device end of UPnP control, for testing
// control points against fake devices.
package soaptest

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strings"
	"text/template"

	"github.com/ericyan/dlnacast/upnp/internal/soap"
)

type envelope struct {
	Body struct {
		Action struct {
			XMLName xml.Name
			Args    []struct {
				XMLName xml.Name
				Value   string `xml:",chardata"`
			} `xml:",any"`
		} `xml:",any"`
	} `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

// ParseRequest decodes the control request r carries. The action named by
// the SOAPACTION header must match the body.
func ParseRequest(r *http.Request) (*soap.Request, error) {
	action, err := ParseAction(headerValue(r.Header, "SOAPAction"))
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := xml.NewDecoder(r.Body).Decode(&env); err != nil {
		return nil, err
	}

	name := env.Body.Action.XMLName
	if name.Space != action.Namespace || name.Local != action.Name {
		return nil, errors.New("action mismatch: " + name.Space + "#" + name.Local)
	}

	args := make([]soap.Arg, len(env.Body.Action.Args))
	for i, a := range env.Body.Action.Args {
		args[i] = soap.Arg{Name: a.XMLName.Local, Value: a.Value}
	}

	return soap.NewRequest(action.Namespace, action.Name, args...), nil
}

// ParseAction parses a SOAPACTION header value.
func ParseAction(s string) (*soap.Action, error) {
	a := strings.SplitN(strings.Trim(strings.TrimSpace(s), `"`), "#", 2)
	if len(a) != 2 || a[0] == "" || a[1] == "" {
		return nil, errors.New("invalid SOAPAction: " + s)
	}

	return &soap.Action{Namespace: a[0], Name: a[1]}, nil
}

// headerValue looks name up case-insensitively, so that headers set
// without canonicalization are found as well.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}

	return ""
}

func escape(s string) string {
	b := new(strings.Builder)
	if err := xml.EscapeText(b, []byte(s)); err != nil {
		panic(err)
	}

	return b.String()
}

var tpl = template.Must(template.New("response").Funcs(template.FuncMap{"escape": escape}).Parse(`<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="` + soap.EnvelopeNamespace + `" s:encodingStyle="` + soap.EncodingStyle + `">
  <s:Body>
    {{- with .Error }}
    <s:Fault>
      <faultcode>s:Client</faultcode>
      <faultstring>UPnPError</faultstring>
      <detail>
        <UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
          <errorCode>{{.Code}}</errorCode>
          <errorDescription>{{escape .Description}}</errorDescription>
        </UPnPError>
      </detail>
    </s:Fault>
    {{- else }}
    <u:{{.Action.Name}}Response xmlns:u="{{.Action.Namespace}}">
    {{- range .Args }}
      <{{.Name}}>{{escape .Value}}</{{.Name}}>
    {{- end}}
    </u:{{.Action.Name}}Response>
    {{- end }}
  </s:Body>
</s:Envelope>
`))

type response struct {
	Action *soap.Action
	Args   []soap.Arg
	Error  *soap.Error
}

func write(w http.ResponseWriter, resp *response) error {
	w.Header().Set("Content-Type", soap.ContentType)
	w.Header().Set("EXT", "")
	if resp.Error != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}

	return tpl.Execute(w, resp)
}

// WriteResponse answers action successfully with the output args.
func WriteResponse(w http.ResponseWriter, action *soap.Action, args ...soap.Arg) error {
	return write(w, &response{Action: action, Args: args})
}

// WriteFault answers with a UPnP error and status 500.
func WriteFault(w http.ResponseWriter, err *soap.Error) error {
	return write(w, &response{Error: err})
}
