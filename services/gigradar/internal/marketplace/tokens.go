package marketplace

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"gigradar/services/gigradar/internal/httpclient"
)

const (
	defaultTokenCookie = "UniversalSearchNuxt_vt"
	visitorCookie      = "visitor_id"
	traceIDHeader      = "vnd-eo-trace-id"
)

var (
	oauthTokenRe   = regexp.MustCompile(`oauth2v2_[a-f0-9]{32}`)
	visitorIDRe    = regexp.MustCompile(`"visitor_?[iI]d"\s*:\s*"([^"]+)"`)
	initialStateRe = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`)
)

// Tokens are the credentials harvested from a public page or endpoint.
type Tokens struct {
	OAuth       string
	OAuthCookie string
	VisitorID   string
	Cookies     map[string]string
}

func (t Tokens) Found() bool {
	return t.OAuth != ""
}

func (t *Tokens) fill(o Tokens) {
	if t.OAuth == "" && o.OAuth != "" {
		t.OAuth = o.OAuth
		t.OAuthCookie = o.OAuthCookie
	}
	if t.VisitorID == "" {
		t.VisitorID = o.VisitorID
	}
	for k, v := range o.Cookies {
		if t.Cookies == nil {
			t.Cookies = make(map[string]string)
		}
		if _, ok := t.Cookies[k]; !ok {
			t.Cookies[k] = v
		}
	}
}

// ExtractTokens looks in parsed cookies, raw Set-Cookie headers, the body
// text and finally the embedded initial-state JSON.
func ExtractTokens(resp *httpclient.Response) Tokens {
	var out Tokens
	if resp == nil {
		return out
	}
	out.fill(fromCookies(resp.Cookies))
	out.fill(fromSetCookie(resp.Header))
	body := string(resp.Body)
	out.fill(fromHTML(body))
	out.fill(fromInitialState(body))
	return out
}

func fromCookies(cookies map[string]string) Tokens {
	t := Tokens{Cookies: make(map[string]string, len(cookies))}
	for name, value := range cookies {
		t.Cookies[name] = value
		if t.OAuth == "" {
			if m := oauthTokenRe.FindString(value); m != "" {
				t.OAuth = m
				t.OAuthCookie = name
			}
		}
		if name == visitorCookie && value != "" {
			t.VisitorID = value
		}
	}
	return t
}

func fromSetCookie(h http.Header) Tokens {
	if h == nil {
		return Tokens{}
	}
	cookies := make(map[string]string)
	for _, line := range h.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		cookies[c.Name] = c.Value
	}
	return fromCookies(cookies)
}

func fromHTML(body string) Tokens {
	var t Tokens
	t.OAuth = oauthTokenRe.FindString(body)
	if m := visitorIDRe.FindStringSubmatch(body); len(m) == 2 {
		t.VisitorID = m[1]
	}
	return t
}

func fromInitialState(body string) Tokens {
	m := initialStateRe.FindStringSubmatch(body)
	if len(m) != 2 {
		return Tokens{}
	}
	var state interface{}
	if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
		return Tokens{}
	}
	var t Tokens
	walkState(state, "", &t)
	return t
}

func walkState(node interface{}, key string, t *Tokens) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, child := range v {
			walkState(child, k, t)
		}
	case []interface{}:
		for _, child := range v {
			walkState(child, key, t)
		}
	case string:
		if t.OAuth == "" {
			if m := oauthTokenRe.FindString(v); m != "" {
				t.OAuth = m
			}
		}
		if t.VisitorID == "" && (strings.EqualFold(key, "visitor_id") || strings.EqualFold(key, "visitorId")) {
			t.VisitorID = v
		}
	}
}
