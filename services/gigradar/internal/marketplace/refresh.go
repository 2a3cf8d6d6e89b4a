package marketplace

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gigradar/services/gigradar/internal/credentials"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/httpclient"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	StateHealthy State = iota
	StateRefreshing
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateRefreshing:
		return "refreshing"
	default:
		return "degraded"
	}
}

const degradedAfter = 2

var (
	defaultAccessiblePages = []string{
		"/nx/search/jobs/",
		"/freelance-jobs/",
		"/hire/",
		"/ab/account-security/login",
	}
	defaultAPIEndpoints = []string{
		"/api/v3/geo/countries",
		"/nx/search/jobs/?q=developer&per_page=10",
		"/freelance-jobs/api/",
	}
)

// Refresher re-acquires visitor credentials after the marketplace rejects
// the current ones. At most one refresh runs at a time.
type Refresher struct {
	http    *httpclient.Client
	session *Session
	store   *credentials.Store
	baseURL string
	logger  *zap.Logger

	AccessiblePages []string
	APIEndpoints    []string

	group singleflight.Group
	now   func() time.Time

	mu       sync.Mutex
	state    State
	failures int
}

func NewRefresher(client *httpclient.Client, session *Session, store *credentials.Store, baseURL string, logger *zap.Logger) *Refresher {
	return &Refresher{
		http:            client,
		session:         session,
		store:           store,
		baseURL:         baseURL,
		logger:          logger,
		AccessiblePages: defaultAccessiblePages,
		APIEndpoints:    defaultAPIEndpoints,
		now:             time.Now,
	}
}

func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Refresh renews credentials unless the session has moved past seenVersion
// already, in which case the caller simply retries with the new bundle.
func (r *Refresher) Refresh(ctx context.Context, seenVersion uint64) error {
	if r.session.Version() != seenVersion {
		return nil
	}

	ch := r.group.DoChan("refresh", func() (interface{}, error) {
		if r.session.Version() != seenVersion {
			return nil, nil
		}
		return nil, r.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type refreshStep struct {
	name string
	run  func(ctx context.Context, base credentials.Bundle) (Tokens, error)
}

func (r *Refresher) refresh(ctx context.Context) error {
	r.setState(StateRefreshing)
	base, _ := r.session.Snapshot()

	steps := []refreshStep{
		{"bootstrap", r.bootstrap},
		{"accessible_pages", r.sweepPages},
		{"unauth_api", r.sweepAPI},
		{"variation", r.variation},
	}

	for _, step := range steps {
		tokens, err := step.run(ctx, base)
		if err != nil {
			r.logger.Debug("refresh step failed", zap.String("step", step.name), zap.Error(err))
			continue
		}
		if !tokens.Found() {
			r.logger.Debug("refresh step found no token", zap.String("step", step.name))
			continue
		}

		bundle := applyTokens(base, tokens)
		r.session.Replace(bundle)
		if err := r.store.Save(bundle); err != nil {
			r.logger.Warn("failed to persist refreshed credentials", zap.Error(err))
		}

		r.mu.Lock()
		r.failures = 0
		r.state = StateHealthy
		r.mu.Unlock()

		r.logger.Info("marketplace credentials refreshed",
			zap.String("step", step.name),
			zap.Bool("visitor_id", tokens.VisitorID != ""))
		return nil
	}

	r.mu.Lock()
	r.failures++
	failures := r.failures
	if failures >= degradedAfter {
		r.state = StateDegraded
	} else {
		r.state = StateHealthy
	}
	state := r.state
	r.mu.Unlock()

	r.logger.Error("marketplace credential refresh failed",
		zap.Int("consecutive_failures", failures),
		zap.String("state", state.String()))
	return errors.AuthExpired("credential refresh failed", nil)
}

func (r *Refresher) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// unauthenticated strips the bearer token and token cookies.
func unauthenticated(base credentials.Bundle) credentials.Bundle {
	b := base.Clone()
	b.DeleteHeader("Authorization")
	for name, value := range b.Cookies {
		if name == defaultTokenCookie || oauthTokenRe.MatchString(value) {
			delete(b.Cookies, name)
		}
	}
	return b
}

func applyTokens(base credentials.Bundle, t Tokens) credentials.Bundle {
	b := base.Clone()
	for name, value := range t.Cookies {
		b.Cookies[name] = value
	}
	cookieName := t.OAuthCookie
	if cookieName == "" {
		cookieName = defaultTokenCookie
	}
	b.Cookies[cookieName] = t.OAuth
	b.SetHeader("Authorization", "Bearer "+t.OAuth)
	if t.VisitorID != "" {
		b.Cookies[visitorCookie] = t.VisitorID
	}
	return b
}

func (r *Refresher) fetch(ctx context.Context, bundle credentials.Bundle, path, accept string) (Tokens, error) {
	headers := make(map[string]string, len(bundle.Headers))
	for k, v := range bundle.Headers {
		headers[k] = v
	}
	headers["Accept"] = accept
	delete(headers, "Content-Type")

	resp, err := r.http.Do(ctx, &httpclient.Request{
		Method:  "GET",
		URL:     r.baseURL + path,
		Headers: headers,
		Cookies: bundle.Cookies,
		Timeout: httpclient.TimeoutLight,
	})
	// Blocked pages still tend to set visitor cookies.
	tokens := ExtractTokens(resp)
	if tokens.Found() {
		return tokens, nil
	}
	return tokens, err
}

func (r *Refresher) bootstrap(ctx context.Context, base credentials.Bundle) (Tokens, error) {
	return r.fetch(ctx, unauthenticated(base), "/", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}

func (r *Refresher) sweepPages(ctx context.Context, base credentials.Bundle) (Tokens, error) {
	return r.sweep(ctx, base, r.AccessiblePages, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}

func (r *Refresher) sweepAPI(ctx context.Context, base credentials.Bundle) (Tokens, error) {
	return r.sweep(ctx, base, r.APIEndpoints, "application/json")
}

func (r *Refresher) sweep(ctx context.Context, base credentials.Bundle, paths []string, accept string) (Tokens, error) {
	bundle := unauthenticated(base)
	var collected Tokens
	var lastErr error
	for _, path := range paths {
		tokens, err := r.fetch(ctx, bundle, path, accept)
		collected.fill(tokens)
		if collected.Found() {
			return collected, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return collected, lastErr
}

func (r *Refresher) variation(ctx context.Context, base credentials.Bundle) (Tokens, error) {
	current := ""
	if auth, ok := base.Header("Authorization"); ok {
		current = oauthTokenRe.FindString(auth)
	}
	if current == "" {
		for _, v := range base.Cookies {
			if current = oauthTokenRe.FindString(v); current != "" {
				break
			}
		}
	}
	traceID, _ := base.Header(traceIDHeader)

	payload, err := json.Marshal(graphQLRequest{Query: typenameQuery})
	if err != nil {
		return Tokens{}, err
	}

	var lastErr error
	for _, candidate := range variationCandidates(current, base.Cookies[visitorCookie], traceID, r.now()) {
		trial := applyTokens(base, Tokens{OAuth: candidate})
		resp, err := r.http.Do(ctx, &httpclient.Request{
			Method:   "POST",
			URL:      r.baseURL + graphQLPath,
			Headers:  trial.Headers,
			Cookies:  trial.Cookies,
			Body:     payload,
			Timeout:  httpclient.TimeoutLight,
			Attempts: 1,
		})
		// Any answer other than 401/403 means the token itself was accepted.
		if err == nil || (resp != nil && !errors.Is(err, errors.ErrTypeAuthExpired)) {
			return Tokens{OAuth: candidate}, nil
		}
		lastErr = err
	}
	return Tokens{}, lastErr
}
