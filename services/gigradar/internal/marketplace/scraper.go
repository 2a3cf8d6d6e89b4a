package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gigradar/common/cache"
	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/credentials"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/httpclient"
	"gigradar/services/gigradar/internal/models"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/marketplace")

const (
	maxRefreshCycles = 2
	snippetBytes     = 2048
)

type Options struct {
	BaseURL  string
	CacheTTL time.Duration
}

// Scraper queries the marketplace GraphQL API as an anonymous visitor.
type Scraper struct {
	http      *httpclient.Client
	session   *Session
	refresher *Refresher
	cache     cache.Cache
	baseURL   string
	cacheTTL  time.Duration
	logger    *zap.Logger
}

func NewScraper(client *httpclient.Client, session *Session, refresher *Refresher, c cache.Cache, opts Options, logger *zap.Logger) *Scraper {
	return &Scraper{
		http:      client,
		session:   session,
		refresher: refresher,
		cache:     c,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		cacheTTL:  opts.CacheTTL,
		logger:    logger,
	}
}

func (s *Scraper) State() State {
	return s.refresher.State()
}

func (s *Scraper) Search(ctx context.Context, query string, limit int) ([]models.Job, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(
		telemetry.String("search.query", query),
		telemetry.Int("search.limit", limit),
	)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.InvalidInput("search query is empty", nil)
	}
	if limit <= 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid search limit %d", limit), nil)
	}

	cacheKey := fmt.Sprintf("mm:search:%s:%d", strings.ToLower(query), limit)
	var cached models.JobList
	if s.cacheGet(ctx, span, cacheKey, &cached) {
		return cached, nil
	}

	body, err := s.postGraphQL(ctx, searchAlias, graphQLRequest{
		Query: searchQuery,
		Variables: searchVariables{RequestVariables: searchRequest{
			UserQuery: query,
			Sort:      "recency",
			Paging:    paging{Offset: 0, Count: limit},
		}},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	jobs, err := parseSearch(body, s.baseURL)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to parse search response",
			zap.String("query", query),
			zap.String("snippet", snippet(body)),
			zap.Error(err))
		return nil, err
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	s.logger.Debug("search completed", zap.String("query", query), zap.Int("count", len(jobs)))
	span.SetAttributes(telemetry.Int("search.results", len(jobs)))

	if err := s.cacheSet(ctx, cacheKey, models.JobList(jobs)); err != nil {
		s.logger.Warn("failed to cache search results", zap.Error(err))
	}
	return jobs, nil
}

func (s *Scraper) Details(ctx context.Context, id string) (*models.JobDetails, error) {
	ctx, span := tracer.Start(ctx, "Details")
	defer span.End()

	if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(id), "~")) == "" {
		return nil, errors.InvalidInput("job id is empty", nil)
	}
	id = normalizeID(id)
	span.SetAttributes(telemetry.String("job.id", id))

	cacheKey := "mm:details:" + id
	var cached models.JobDetails
	if s.cacheGet(ctx, span, cacheKey, &cached) {
		return &cached, nil
	}

	body, err := s.postGraphQL(ctx, detailsAlias, graphQLRequest{
		Query:     detailsQuery,
		Variables: detailsVariables{ID: id},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	details, err := parseDetails(body, id, s.baseURL)
	if err != nil {
		s.logger.Error("failed to parse job details",
			zap.String("id", id),
			zap.String("snippet", snippet(body)),
			zap.Error(err))
		return placeholderDetails(id, s.baseURL), nil
	}

	if err := s.cacheSet(ctx, cacheKey, details); err != nil {
		s.logger.Warn("failed to cache job details", zap.Error(err))
	}
	return details, nil
}

// postGraphQL sends one GraphQL request, refreshing credentials and
// retrying when the marketplace rejects them.
func (s *Scraper) postGraphQL(ctx context.Context, alias string, payload graphQLRequest) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Internal("encoding graphql request", err)
	}

	bundle, version := s.session.Snapshot()
	body, err := s.post(ctx, alias, data, bundle)
	if !errors.Is(err, errors.ErrTypeAuthExpired) {
		return body, err
	}

	for cycle := 1; cycle <= maxRefreshCycles; cycle++ {
		s.logger.Info("marketplace rejected credentials, refreshing",
			zap.String("alias", alias),
			zap.Int("cycle", cycle))
		if rerr := s.refresher.Refresh(ctx, version); rerr != nil {
			if ctx.Err() != nil {
				return nil, errors.Transport("request cancelled", ctx.Err())
			}
			err = rerr
			_, version = s.session.Snapshot()
			continue
		}

		bundle, version = s.session.Snapshot()
		body, err = s.post(ctx, alias, data, bundle)
		if !errors.Is(err, errors.ErrTypeAuthExpired) {
			return body, err
		}
	}
	return nil, errors.AuthExpired("marketplace credentials rejected after refresh", err)
}

func (s *Scraper) post(ctx context.Context, alias string, data []byte, bundle credentials.Bundle) ([]byte, error) {
	headers := make(map[string]string, len(bundle.Headers)+2)
	for k, v := range bundle.Headers {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"
	if _, ok := bundle.Header("Accept"); !ok {
		headers["Accept"] = "application/json"
	}

	resp, err := s.http.Do(ctx, &httpclient.Request{
		Method:  "POST",
		URL:     s.baseURL + graphQLPath + "?alias=" + alias,
		Headers: headers,
		Cookies: bundle.Cookies,
		Body:    data,
		Timeout: httpclient.TimeoutDetail,
	})
	if err != nil {
		return nil, err
	}
	if graphQLAuthError(resp.Body) {
		return nil, errors.AuthExpired("graphql authorization error", nil)
	}
	return resp.Body, nil
}

func (s *Scraper) cacheGet(ctx context.Context, span trace.Span, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dst)
	switch {
	case err == nil:
		span.SetAttributes(telemetry.String("cache.result", "hit"), telemetry.Bool("cache.hit", true))
		s.logger.Debug("cache hit", zap.String("key", key))
		return true
	case err != cache.ErrNotFound:
		span.SetAttributes(telemetry.String("cache.result", "error"), telemetry.Bool("cache.hit", false))
		span.RecordError(err)
		s.logger.Warn("cache error", zap.String("key", key), zap.Error(err))
	default:
		span.SetAttributes(telemetry.String("cache.result", "miss"), telemetry.Bool("cache.hit", false))
	}
	return false
}

func (s *Scraper) cacheSet(ctx context.Context, key string, value interface{}) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, key, value, s.cacheTTL)
}

func snippet(body []byte) string {
	if len(body) > snippetBytes {
		body = body[:snippetBytes]
	}
	return string(body)
}
