package soap

import (
	"encoding/xml"
	"io"
	"strings"
	"text/template"
)

// XML namespaces of a SOAP 1.1 envelope.
const (
	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	EncodingStyle     = "http://schemas.xmlsoap.org/soap/encoding/"
)

// ContentType is the Content-Type of every SOAP request and response.
const ContentType = `text/xml; charset="utf-8"`

type Action struct {
	Namespace string
	Name      string
}

// String returns the quoted value of the SOAPACTION header.
func (a *Action) String() string {
	return `"` + a.Namespace + "#" + a.Name + `"`
}

// An Error represents an UPnP DCP specific error.
type Error struct {
	Code        int
	Description string
}

// Error implements the error interface
func (err *Error) Error() string {
	return err.Description
}

// Is reports whether target is an *Error with the same code, so faults
// parsed from a response match the predefined values.
func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == err.Code
}

// UPnP defined error codes
var (
	ErrInvalidAction        = &Error{401, "Invalid Action"}
	ErrInvalidArgs          = &Error{402, "Invalid Args"}
	ErrActionFailed         = &Error{501, "Action Failed"}
	ErrArgValueInvalid      = &Error{600, "Argument Value Invalid"}
	ErrArgValueOutOfRange   = &Error{601, "Argument Value Out of Range"}
	ErrActionNotImplemented = &Error{602, "Optional Action Not Implemented"}
	ErrOutOfMemory          = &Error{603, "Out of Memory"}
	ErrInterventionRequired = &Error{604, "Human Intervention Required"}
	ErrArgTooLong           = &Error{605, "String Argument Too Long"}
)

// Arg is a named action argument. Arguments are kept in order since some
// control points and devices are strict about it.
type Arg struct {
	Name  string
	Value string
}

type Request struct {
	Action *Action
	Args   []Arg
}

// NewRequest returns a request for the action name of the service
// identified by the URN namespace.
func NewRequest(namespace, name string, args ...Arg) *Request {
	return &Request{&Action{namespace, name}, args}
}

// Arg returns the value of the named argument.
func (req *Request) Arg(name string) string {
	for _, a := range req.Args {
		if a.Name == name {
			return a.Value
		}
	}

	return ""
}

// parseArgs collects the child elements of the element named name.
func parseArgs(r io.Reader, name xml.Name) ([]Arg, error) {
	var args []Arg

	d := xml.NewDecoder(r)
	depth := 0
	var v strings.Builder
	for {
		token, err := d.Token()
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch {
			case depth == 0 && t.Name == name:
				depth = 1
				args = make([]Arg, 0)
			case depth > 0:
				depth++
				v.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				v.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 0:
			case 1:
				return args, nil
			case 2:
				args = append(args, Arg{t.Name.Local, v.String()})
				depth--
			default:
				depth--
			}
		}
	}
}

func escape(s string) string {
	b := new(strings.Builder)
	if err := xml.EscapeText(b, []byte(s)); err != nil {
		panic(err)
	}

	return b.String()
}

var funcs = template.FuncMap{"escape": escape}

const requestTemplate = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="` + EnvelopeNamespace + `" s:encodingStyle="` + EncodingStyle + `">
  <s:Body>
    <u:{{.Action.Name}} xmlns:u="{{.Action.Namespace}}">
    {{- range .Args }}
      <{{.Name}}>{{escape .Value}}</{{.Name}}>
    {{- end}}
    </u:{{.Action.Name}}>
  </s:Body>
</s:Envelope>
`

var requestTpl = template.Must(template.New("request").Funcs(funcs).Parse(requestTemplate))

// WriteTo writes the request as a SOAP envelope.
func (req *Request) WriteTo(w io.Writer) error {
	return requestTpl.Execute(w, req)
}

// Response holds the output arguments of an action.
type Response struct {
	Action *Action
	Args   map[string]string
}

type fault struct {
	Body struct {
		Fault *struct {
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
			Detail      struct {
				UPnPError struct {
					Code        int    `xml:"errorCode"`
					Description string `xml:"errorDescription"`
				} `xml:"UPnPError"`
			} `xml:"detail"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// ParseFault returns the UPnP error carried by a fault envelope, or nil
// if body is not a fault.
func ParseFault(body []byte) *Error {
	var f fault
	if err := xml.Unmarshal(body, &f); err != nil || f.Body.Fault == nil {
		return nil
	}

	upnpErr := f.Body.Fault.Detail.UPnPError
	if upnpErr.Code == 0 && upnpErr.Description == "" {
		return &Error{Code: 0, Description: f.Body.Fault.FaultString}
	}

	return &Error{upnpErr.Code, upnpErr.Description}
}

// ParseResponse decodes the output arguments of a successful response to
// the action.
func ParseResponse(body []byte, action *Action) (*Response, error) {
	name := xml.Name{Space: action.Namespace, Local: action.Name + "Response"}
	args, err := parseArgs(strings.NewReader(string(body)), name)
	if err != nil {
		return nil, err
	}

	resp := &Response{Action: action, Args: make(map[string]string, len(args))}
	for _, a := range args {
		resp.Args[a.Name] = a.Value
	}

	return resp, nil
}
