package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gigradar/services/gigradar/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeadersFile   = "marketplace_headers.json"
	CookiesFile   = "marketplace_cookies.json"
	VisitorIDFile = "visitor_id.txt"

	VisitorIDHeader = "vnd-eo-visitorId"
)

var (
	requiredHeaders = []string{"User-Agent", "Accept", "Content-Type", "Origin"}
	visitorIDFormat = regexp.MustCompile(`^[0-9a-fA-F]{16,64}$`)
)

// Bundle is the header and cookie set presented to the marketplace.
type Bundle struct {
	Headers map[string]string
	Cookies map[string]string
}

func (b Bundle) Clone() Bundle {
	out := Bundle{
		Headers: make(map[string]string, len(b.Headers)),
		Cookies: make(map[string]string, len(b.Cookies)),
	}
	for k, v := range b.Headers {
		out.Headers[k] = v
	}
	for k, v := range b.Cookies {
		out.Cookies[k] = v
	}
	return out
}

// Header looks a header up case-insensitively.
func (b Bundle) Header(name string) (string, bool) {
	key, ok := headerKey(b.Headers, name)
	if !ok {
		return "", false
	}
	return b.Headers[key], true
}

// SetHeader replaces a header, keeping whatever casing is already stored.
func (b Bundle) SetHeader(name, value string) {
	if key, ok := headerKey(b.Headers, name); ok {
		b.Headers[key] = value
		return
	}
	b.Headers[name] = value
}

func (b Bundle) DeleteHeader(name string) {
	if key, ok := headerKey(b.Headers, name); ok {
		delete(b.Headers, key)
	}
}

func headerKey(headers map[string]string, name string) (string, bool) {
	if _, ok := headers[name]; ok {
		return name, true
	}
	for k := range headers {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Store persists the credential bundle as two JSON files plus a visitor id
// side file under one directory.
type Store struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex

	mintVisitorID func() string
}

func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		mintVisitorID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) Load() (Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	headers, err := readStringMap(s.path(HeadersFile))
	if err != nil {
		return Bundle{}, err
	}
	if err := requireHeaders(headers); err != nil {
		return Bundle{}, err
	}
	cookies, err := readStringMap(s.path(CookiesFile))
	if err != nil {
		return Bundle{}, err
	}

	s.logger.Debug("loaded marketplace credentials",
		zap.Int("headers", len(headers)),
		zap.Int("cookies", len(cookies)))

	return Bundle{Headers: headers, Cookies: cookies}, nil
}

// Save writes both files through temp files and renames them into place only
// after both temp files are fully written.
func (s *Store) Save(b Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	headerData, err := json.MarshalIndent(b.Headers, "", "  ")
	if err != nil {
		return errors.Internal("encoding headers", err)
	}
	cookieData, err := json.MarshalIndent(b.Cookies, "", "  ")
	if err != nil {
		return errors.Internal("encoding cookies", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.Internal("creating credentials directory", err)
	}

	headerTmp, err := writeTemp(s.dir, HeadersFile, headerData)
	if err != nil {
		return err
	}
	cookieTmp, err := writeTemp(s.dir, CookiesFile, cookieData)
	if err != nil {
		os.Remove(headerTmp)
		return err
	}

	if err := os.Rename(cookieTmp, s.path(CookiesFile)); err != nil {
		os.Remove(headerTmp)
		os.Remove(cookieTmp)
		return errors.Internal("replacing cookies file", err)
	}
	if err := os.Rename(headerTmp, s.path(HeadersFile)); err != nil {
		os.Remove(headerTmp)
		return errors.Internal("replacing headers file", err)
	}

	s.logger.Info("saved marketplace credentials",
		zap.Int("headers", len(b.Headers)),
		zap.Int("cookies", len(b.Cookies)))
	return nil
}

// EnsureVisitorID makes sure the bundle carries a well-formed visitor id
// header. A missing or malformed one is replaced by the id in the side file,
// or by a freshly minted 32-hex id that is then written to the side file.
func (s *Store) EnsureVisitorID(b Bundle) (string, error) {
	if b.Headers == nil {
		return "", errors.InvalidInput("bundle has no header map", nil)
	}
	if id, ok := b.Header(VisitorIDHeader); ok && visitorIDFormat.MatchString(id) {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if data, err := os.ReadFile(s.path(VisitorIDFile)); err == nil {
		if id := strings.TrimSpace(string(data)); visitorIDFormat.MatchString(id) {
			b.SetHeader(VisitorIDHeader, id)
			return id, nil
		}
	}

	id := s.mintVisitorID()
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", errors.Internal("creating credentials directory", err)
	}
	tmp, err := writeTemp(s.dir, VisitorIDFile, []byte(id+"\n"))
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp, s.path(VisitorIDFile)); err != nil {
		os.Remove(tmp)
		return "", errors.Internal("replacing visitor id file", err)
	}

	s.logger.Info("minted new visitor id")
	b.SetHeader(VisitorIDHeader, id)
	return id, nil
}

// ValidateHeaders checks the header set every marketplace call relies on.
func ValidateHeaders(headers map[string]string) error {
	if err := requireHeaders(headers); err != nil {
		return err
	}
	b := Bundle{Headers: headers}
	if id, ok := b.Header(VisitorIDHeader); ok && !visitorIDFormat.MatchString(id) {
		return errors.InvalidInput(fmt.Sprintf("%s is not 16-64 hex characters", VisitorIDHeader), nil)
	}
	return nil
}

// requireHeaders leaves the visitor id to EnsureVisitorID, which can repair it.
func requireHeaders(headers map[string]string) error {
	b := Bundle{Headers: headers}
	var missing []string
	for _, name := range requiredHeaders {
		if v, ok := b.Header(name); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.CredentialsMissing("missing headers: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

func readStringMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.CredentialsMissing(filepath.Base(path)+" not found", err)
	}
	if err != nil {
		return nil, errors.Internal("reading "+filepath.Base(path), err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.CredentialsMissing(filepath.Base(path)+" is not a JSON object", err)
	}
	if raw == nil {
		return nil, errors.CredentialsMissing(filepath.Base(path)+" is not a JSON object", nil)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			out[k] = ""
		default:
			enc, _ := json.Marshal(val)
			out[k] = string(enc)
		}
	}
	return out, nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", errors.Internal("creating temp file for "+name, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", errors.Internal("writing "+name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", errors.Internal("syncing "+name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", errors.Internal("closing "+name, err)
	}
	if err := os.Chmod(tmp, 0o600); err != nil {
		os.Remove(tmp)
		return "", errors.Internal("chmod "+name, err)
	}
	return tmp, nil
}
