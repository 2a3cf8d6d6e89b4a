package httpclient

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	TimeoutLight  = 15 * time.Second
	TimeoutDetail = 30 * time.Second

	maxBodyBytes = 16 << 20
)

// Request is a single outbound call. Cookies are sent as one Cookie header.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Cookies map[string]string
	Body    []byte
	Timeout time.Duration
	// Attempts caps the client's retry budget for this request; zero keeps it.
	Attempts int
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Cookies holds name/value pairs from Set-Cookie.
	Cookies map[string]string
}

// Transport performs exactly one attempt; retry policy lives in Client.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

func cookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}

func timeoutFor(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return TimeoutDetail
}
