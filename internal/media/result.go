// Package media holds the request and result values exchanged between the
// command router, the fetch proxy and the views that render media.
package media

import (
	"context"
	"net/http"
)

// Kind tags what a payload renders as.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// SubTypeGenerated marks images produced by the image generation providers.
// Every other image sub-type is the command identifier itself.
const SubTypeGenerated = "generated"

// ErrorClass classifies a failed resolution.
type ErrorClass int

const (
	// ClassClient means the input was missing or invalid; never retried.
	ClassClient ErrorClass = iota + 1
	// ClassUpstream means a third-party provider failed or returned an unusable payload.
	ClassUpstream
	// ClassServer means an unexpected failure inside the proxy.
	ClassServer
)

// String returns the class name used in logs.
func (c ErrorClass) String() string {
	switch c {
	case ClassClient:
		return "client"
	case ClassUpstream:
		return "upstream"
	case ClassServer:
		return "server"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the class to the status code of the backend boundary.
func (c ErrorClass) HTTPStatus() int {
	switch c {
	case ClassClient:
		return http.StatusBadRequest
	case ClassUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClassFromStatus is the inverse of HTTPStatus for non-2xx codes.
func ClassFromStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ClassClient
	case status == http.StatusBadGateway:
		return ClassUpstream
	default:
		return ClassServer
	}
}

// Request is the resolved intent to fetch media for one command.
type Request struct {
	Command  string `json:"command"`
	Argument string `json:"argument,omitempty"`
}

// Payload is a successfully fetched artifact.
type Payload struct {
	DataURI  string
	MimeType string
	Size     int
	Kind     Kind
	SubType  string
}

// Result is either a Payload or a classified error message, never both.
type Result struct {
	payload *Payload
	class   ErrorClass
	message string
}

// Success wraps a payload.
func Success(p Payload) Result {
	return Result{payload: &p}
}

// Failure builds an error result.
func Failure(class ErrorClass, message string) Result {
	return Result{class: class, message: message}
}

// ClientError is Failure(ClassClient, message).
func ClientError(message string) Result {
	return Failure(ClassClient, message)
}

// UpstreamError is Failure(ClassUpstream, message).
func UpstreamError(message string) Result {
	return Failure(ClassUpstream, message)
}

// ServerError is the generic failure returned when resolution blew up.
func ServerError() Result {
	return Failure(ClassServer, "Server error")
}

// OK reports whether the result carries a payload.
func (r Result) OK() bool {
	return r.payload != nil
}

// Payload returns the payload of a successful result.
func (r Result) Payload() (Payload, bool) {
	if r.payload == nil {
		return Payload{}, false
	}
	return *r.payload, true
}

// Class returns the error class; zero for successes.
func (r Result) Class() ErrorClass {
	return r.class
}

// Message returns the human-readable error text; empty for successes.
func (r Result) Message() string {
	return r.message
}

// HTTPStatus is 200 for successes and the class status otherwise.
func (r Result) HTTPStatus() int {
	if r.OK() {
		return http.StatusOK
	}
	return r.class.HTTPStatus()
}

// Resolver turns a request into a result. Implementations never return a
// zero Result and never panic across the call.
type Resolver interface {
	Resolve(ctx context.Context, req Request) Result
}
