package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// StdTransport is the plain net/http transport used when TLS impersonation
// is disabled and in tests against httptest servers.
type StdTransport struct {
	client *http.Client
}

func NewStdTransport() *StdTransport {
	return &StdTransport{client: &http.Client{}}
}

func (t *StdTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutFor(req))
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if c := cookieHeader(req.Cookies); c != "" {
		httpReq.Header.Set("Cookie", c)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	cookies := make(map[string]string)
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Cookies:    cookies,
	}, nil
}
