package httpclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientHints(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		want     string
		platform string
		mobile   string
	}{
		{
			name:     "chrome windows",
			ua:       chromeUserAgent,
			want:     `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
			platform: `"Windows"`,
			mobile:   "?0",
		},
		{
			name:     "chrome mac",
			ua:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			want:     `"Not_A Brand";v="8", "Chromium";v="124", "Google Chrome";v="124"`,
			platform: `"macOS"`,
			mobile:   "?0",
		},
		{
			name:     "edge",
			ua:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.2365.92",
			want:     `"Not_A Brand";v="8", "Chromium";v="122", "Microsoft Edge";v="122"`,
			platform: `"Windows"`,
			mobile:   "?0",
		},
		{
			name:     "chrome android",
			ua:       "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Mobile Safari/537.36",
			want:     `"Not_A Brand";v="8", "Chromium";v="123", "Google Chrome";v="123"`,
			platform: `"Android"`,
			mobile:   "?1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := clientHints(tt.ua)
			require.Equal(t, tt.want, hints["sec-ch-ua"])
			require.Equal(t, tt.platform, hints["sec-ch-ua-platform"])
			require.Equal(t, tt.mobile, hints["sec-ch-ua-mobile"])
		})
	}
}

func TestClientHints_NonChromium(t *testing.T) {
	for _, ua := range []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"",
	} {
		require.Nil(t, clientHints(ua), ua)
	}
}
