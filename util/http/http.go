package http

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam describes one outbound call.
//
// Body may be nil, an io.Reader, a []byte or any value that is sent as JSON.
// Response may be nil, a *[]byte that receives the raw body, or a pointer that
// the JSON body is decoded into.
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	// Timeout overrides the client timeout for this request when set.
	Timeout time.Duration
	// ContentType is filled with the response Content-Type header.
	ContentType string
}
