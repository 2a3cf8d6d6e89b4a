package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"regexp"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	chromeVersionRe = regexp.MustCompile(`Chrome/(\d+)`)
	edgeVersionRe   = regexp.MustCompile(`Edg/(\d+)`)
)

var chromeHeaderOrder = []string{
	"host",
	"content-length",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"authorization",
	"content-type",
	"user-agent",
	"accept",
	"origin",
	"referer",
	"accept-encoding",
	"accept-language",
	"cookie",
}

// ImpersonatingTransport presents a Chrome 120 TLS/HTTP2 fingerprint with a
// matching User-Agent and client hints.
type ImpersonatingTransport struct {
	client tls_client.HttpClient
}

func NewImpersonatingTransport() (*ImpersonatingTransport, error) {
	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(),
		tls_client.WithTimeoutSeconds(int(TimeoutDetail.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithRandomTLSExtensionOrder(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tls client: %w", err)
	}
	return &ImpersonatingTransport{client: client}, nil
}

func (t *ImpersonatingTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
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

	header := http.Header{}
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", chromeUserAgent)
	}
	if header.Get("sec-ch-ua") == "" {
		for k, v := range clientHints(header.Get("User-Agent")) {
			header.Set(k, v)
		}
	}
	if c := cookieHeader(req.Cookies); c != "" {
		header.Set("Cookie", c)
	}
	header[http.HeaderOrderKey] = chromeHeaderOrder
	httpReq.Header = header

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
		Header:     nethttp.Header(resp.Header),
		Body:       data,
		Cookies:    cookies,
	}, nil
}

// clientHints derives the sec-ch-ua set a browser with this User-Agent would
// send. Browsers that do not send client hints get none.
func clientHints(ua string) map[string]string {
	m := chromeVersionRe.FindStringSubmatch(ua)
	if m == nil {
		return nil
	}
	brand, version := "Google Chrome", m[1]
	if e := edgeVersionRe.FindStringSubmatch(ua); e != nil {
		brand, version = "Microsoft Edge", e[1]
	}

	platform, mobile := "Unknown", "?0"
	switch {
	case strings.Contains(ua, "Android"):
		platform, mobile = "Android", "?1"
	case strings.Contains(ua, "Windows"):
		platform = "Windows"
	case strings.Contains(ua, "Mac OS X"):
		platform = "macOS"
	case strings.Contains(ua, "CrOS"):
		platform = "Chrome OS"
	case strings.Contains(ua, "Linux"):
		platform = "Linux"
	}

	return map[string]string{
		"sec-ch-ua":          fmt.Sprintf(`"Not_A Brand";v="8", "Chromium";v="%s", "%s";v="%s"`, m[1], brand, version),
		"sec-ch-ua-mobile":   mobile,
		"sec-ch-ua-platform": `"` + platform + `"`,
	}
}
