// Package provider adapts the third-party media APIs behind one Attempt call.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Blob is a fetched media body.
type Blob struct {
	Data        []byte
	ContentType string
}

// Response is a fully read upstream response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// FetcherOptions configures the shared upstream HTTP client.
type FetcherOptions struct {
	UserAgent string
	// Timeout of zero leaves upstream calls bounded only by the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Fetcher issues GET requests to upstream providers. It never retries.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher builds a fetcher on top of resty.
func NewFetcher(opts FetcherOptions) *Fetcher {
	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetRetryCount(0)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		client.SetHeader("User-Agent", ua)
	}
	return &Fetcher{client: client}
}

// Get fetches rawURL with the given query parameters and reads the whole body.
func (f *Fetcher) Get(ctx context.Context, rawURL string, query map[string]string) (*Response, error) {
	req := f.client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	return &Response{
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// Error is a provider failure with the message shown to the user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(err error, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Err: err}
}

func contentTypeOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
