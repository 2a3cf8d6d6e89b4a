package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gigradar/services/gigradar/internal/errors"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validHeaders() map[string]string {
	return map[string]string{
		"User-Agent":   "Mozilla/5.0",
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"Origin":       "https://www.example.com",
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(t.TempDir(), zap.NewNop())
	_, err := s.Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrTypeCredentialsMissing))
}

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, zap.NewNop())

	b := Bundle{
		Headers: validHeaders(),
		Cookies: map[string]string{"visitor_id": "1.2.3.4", "UniversalSearchNuxt_vt": "oauth2v2_abc"},
	}
	require.NoError(t, s.Save(b))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, b.Headers, got.Headers)
	require.Equal(t, b.Cookies, got.Cookies)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "temp files must not be left behind")
}

func TestStore_LoadStringifiesCookieValues(t *testing.T) {
	dir := t.TempDir()
	writeHeaders(t, dir, validHeaders())
	require.NoError(t, os.WriteFile(filepath.Join(dir, CookiesFile), []byte(`{"n":42,"b":true,"f":1.5,"z":null}`), 0o600))

	got, err := NewStore(dir, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"n": "42", "b": "true", "f": "1.5", "z": ""}, got.Cookies)
}

func writeHeaders(t *testing.T, dir string, headers map[string]string) {
	t.Helper()
	data, err := json.Marshal(headers)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, HeadersFile), data, 0o600))
}

func TestStore_LoadRejectsMalformedBundles(t *testing.T) {
	noOrigin := validHeaders()
	delete(noOrigin, "Origin")
	noOriginJSON, err := json.Marshal(noOrigin)
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers string
		cookies string
		want    string
	}{
		{name: "null headers", headers: `null`, cookies: `{}`, want: HeadersFile},
		{name: "array headers", headers: `["a"]`, cookies: `{}`, want: HeadersFile},
		{name: "no required headers", headers: `{"X-Foo":"bar"}`, cookies: `{}`, want: "User-Agent"},
		{name: "missing origin", headers: string(noOriginJSON), cookies: `{}`, want: "Origin"},
		{name: "null cookies", headers: `{"User-Agent":"ua","Accept":"*/*","Content-Type":"application/json","Origin":"https://www.example.com"}`, cookies: `null`, want: CookiesFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, HeadersFile), []byte(tt.headers), 0o600))
			require.NoError(t, os.WriteFile(filepath.Join(dir, CookiesFile), []byte(tt.cookies), 0o600))

			_, err := NewStore(dir, zap.NewNop()).Load()
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrTypeCredentialsMissing))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestStore_LoadAcceptsMalformedVisitorID(t *testing.T) {
	dir := t.TempDir()
	h := validHeaders()
	h[VisitorIDHeader] = "not-hex"
	writeHeaders(t, dir, h)
	require.NoError(t, os.WriteFile(filepath.Join(dir, CookiesFile), []byte(`{}`), 0o600))

	s := NewStore(dir, zap.NewNop())
	s.mintVisitorID = func() string { return "0123456789abcdef" }
	b, err := s.Load()
	require.NoError(t, err)

	id, err := s.EnsureVisitorID(b)
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef", id)
}

func TestStore_EnsureVisitorID(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, zap.NewNop())
	s.mintVisitorID = func() string { return "0123456789abcdef0123456789abcdef" }

	b := Bundle{Headers: validHeaders(), Cookies: map[string]string{}}
	id, err := s.EnsureVisitorID(b)
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef0123456789abcdef", id)

	h, ok := b.Header("VND-EO-VISITORID")
	require.True(t, ok)
	require.Equal(t, id, h)

	data, err := os.ReadFile(filepath.Join(dir, VisitorIDFile))
	require.NoError(t, err)
	require.Equal(t, id+"\n", string(data))

	// A fresh bundle picks the persisted id up instead of minting again.
	s.mintVisitorID = func() string { t.Fatal("must not mint twice"); return "" }
	fresh := Bundle{Headers: validHeaders()}
	again, err := s.EnsureVisitorID(fresh)
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestStore_EnsureVisitorIDKeepsValidHeader(t *testing.T) {
	s := NewStore(t.TempDir(), zap.NewNop())
	h := validHeaders()
	h[VisitorIDHeader] = "abcdefabcdefabcd"
	id, err := s.EnsureVisitorID(Bundle{Headers: h})
	require.NoError(t, err)
	require.Equal(t, "abcdefabcdefabcd", id)
}

func TestValidateHeaders(t *testing.T) {
	require.NoError(t, ValidateHeaders(validHeaders()))

	h := validHeaders()
	delete(h, "Origin")
	err := ValidateHeaders(h)
	require.True(t, errors.Is(err, errors.ErrTypeCredentialsMissing))
	require.ErrorContains(t, err, "Origin")

	h = validHeaders()
	h[VisitorIDHeader] = "not-hex"
	require.True(t, errors.Is(ValidateHeaders(h), errors.ErrTypeInvalidInput))
}

func TestBundle_Clone(t *testing.T) {
	b := Bundle{Headers: map[string]string{"A": "1"}, Cookies: map[string]string{"c": "1"}}
	c := b.Clone()
	c.Headers["A"] = "2"
	c.Cookies["c"] = "2"
	require.Equal(t, "1", b.Headers["A"])
	require.Equal(t, "1", b.Cookies["c"])
}
