package soap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
)

// maxBodySize bounds how much of a device response is kept.
const maxBodySize = 1 << 20

// HTTPError is returned by Client.Call when the device does not answer
// with a success status or answers with a SOAP fault.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Fault      *Error
}

func (e *HTTPError) Error() string {
	if e.Fault != nil {
		return fmt.Sprintf("status %d: UPnP error %d: %s", e.StatusCode, e.Fault.Code, e.Fault.Description)
	}

	return fmt.Sprintf("status %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

// Unwrap returns the UPnP fault, if any.
func (e *HTTPError) Unwrap() error {
	if e.Fault == nil {
		return nil
	}

	return e.Fault
}

// Client invokes actions on UPnP control URLs.
type Client struct {
	HTTPClient *http.Client
}

// NewClient returns a client using hc, or a pooled client without
// timeout if hc is nil. Callers bound each call through its context.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = cleanhttp.DefaultPooledClient()
	}

	return &Client{HTTPClient: hc}
}

// NewHTTPRequest returns the HTTP POST carrying req to controlURL.
func (req *Request) NewHTTPRequest(ctx context.Context, controlURL string) (*http.Request, error) {
	buf := new(bytes.Buffer)
	if err := req.WriteTo(buf); err != nil {
		return nil, err
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, buf)
	if err != nil {
		return nil, err
	}

	r.Header.Set("Content-Type", ContentType)
	// Some renderers match the header name case-sensitively.
	r.Header["SOAPACTION"] = []string{req.Action.String()}

	return r, nil
}

// Call sends req to controlURL and decodes the response. Transport
// failures are returned as is; non-2xx statuses and faults as *HTTPError.
func (c *Client) Call(ctx context.Context, controlURL string, req *Request) (*Response, error) {
	r, err := req.NewHTTPRequest(ctx, controlURL)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	f := ParseFault(body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || f != nil {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body, Fault: f}
	}

	out, err := ParseResponse(body, req.Action)
	if err != nil {
		// Plenty of devices answer 200 with an empty or sloppy body.
		return &Response{Action: req.Action, Args: map[string]string{}}, nil
	}

	return out, nil
}
