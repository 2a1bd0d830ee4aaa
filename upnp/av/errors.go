package av

import (
	"errors"
	"fmt"

	"github.com/ericyan/dlnacast/upnp/internal/soap"
)

// Stage is a step of a cast.
type Stage int

const (
	StagePrepare Stage = iota + 1
	StageSetURI
	StagePlay
)

func (s Stage) String() string {
	switch s {
	case StagePrepare:
		return "Prepare"
	case StageSetURI:
		return "SetURI"
	case StagePlay:
		return "Play"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// CastError reports the stage a cast failed at. StatusCode and Body are
// set when the renderer answered.
type CastError struct {
	Stage      Stage
	StatusCode int
	Body       []byte
	Err        error
}

func (e *CastError) Error() string {
	msg := "cast failed at " + e.Stage.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *CastError) Unwrap() error {
	return e.Err
}

// Fault returns the UPnP error the renderer answered with, if any.
func (e *CastError) Fault() *soap.Error {
	var httpErr *soap.HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.Fault
	}

	return nil
}

func newCastError(stage Stage, err error) *CastError {
	ce := &CastError{Stage: stage, Err: err}

	var httpErr *soap.HTTPError
	if errors.As(err, &httpErr) {
		ce.StatusCode = httpErr.StatusCode
		ce.Body = httpErr.Body
	}

	return ce
}
