package forum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/audit"
	"gigradar/services/gigradar/internal/classifier"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/httpclient"
	"gigradar/services/gigradar/internal/messaging"
	"gigradar/services/gigradar/internal/models"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/forum")

type ThreadStore interface {
	ThreadExists(ctx context.Context, link string) (bool, error)
	InsertThread(ctx context.Context, t models.ForumThread) (bool, error)
}

type Classifier interface {
	Classify(ctx context.Context, title, description string) classifier.Decision
}

type Publisher interface {
	PublishThreadApproved(ctx context.Context, event models.ThreadApprovedEvent) error
}

type Options struct {
	BaseURL     string
	OnlyToday   bool
	PageDelay   time.Duration
	DetailDelay time.Duration
}

var htmlHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// Scraper walks the hire-a-freelancer board, classifies unseen threads and
// stores them.
type Scraper struct {
	http       *httpclient.Client
	store      ThreadStore
	classifier Classifier
	publisher  Publisher
	recorder   audit.Recorder
	opts       Options
	logger     *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScraper(client *httpclient.Client, store ThreadStore, c Classifier, publisher Publisher, recorder audit.Recorder, opts Options, logger *zap.Logger) *Scraper {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Scraper{
		http:       client,
		store:      store,
		classifier: c,
		publisher:  publisher,
		recorder:   recorder,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		sleep:      httpclient.Sleep,
	}
}

type passStats struct {
	pages      int
	seen       int
	outOfRange int
	duplicates int
	failed     int
	stored     int
	approved   int
}

func pageURL(base string, page int) string {
	if page <= 1 {
		return base + "/"
	}
	return fmt.Sprintf("%s/page-%d", base, page)
}

// Scrape processes pages 1..pages in listing order and returns the number
// of newly stored threads.
func (s *Scraper) Scrape(ctx context.Context, pages int) (int, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()
	span.SetAttributes(telemetry.Int("forum.pages", pages))

	if pages < 1 {
		return 0, errors.InvalidInput(fmt.Sprintf("invalid page count %d", pages), nil)
	}

	var stats passStats
	var lastErr error
	failedPages := 0

	for page := 1; page <= pages; page++ {
		if page > 1 {
			if err := s.sleep(ctx, s.opts.PageDelay); err != nil {
				return stats.stored, err
			}
		}

		threads, err := s.fetchListing(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return stats.stored, ctx.Err()
			}
			failedPages++
			lastErr = err
			s.logger.Warn("failed to fetch listing page", zap.Int("page", page), zap.Error(err))
			continue
		}
		stats.pages++

		if len(threads) == 0 {
			s.logger.Info("listing page has no threads", zap.Int("page", page))
			continue
		}

		for _, t := range threads {
			if ctx.Err() != nil {
				return stats.stored, ctx.Err()
			}
			fetched := s.processThread(ctx, t, &stats)
			if fetched {
				if err := s.sleep(ctx, s.opts.DetailDelay); err != nil {
					return stats.stored, err
				}
			}
		}
	}

	span.SetAttributes(
		telemetry.Int("forum.stored", stats.stored),
		telemetry.Int("forum.approved", stats.approved),
	)
	s.logger.Info("forum pass complete",
		zap.Int("pages", stats.pages),
		zap.Int("seen", stats.seen),
		zap.Int("filtered_by_date", stats.outOfRange),
		zap.Int("duplicates", stats.duplicates),
		zap.Int("failed", stats.failed),
		zap.Int("stored", stats.stored),
		zap.Int("approved", stats.approved))

	if failedPages == pages {
		return 0, lastErr
	}
	return stats.stored, nil
}

func (s *Scraper) fetchListing(ctx context.Context, page int) ([]listingThread, error) {
	ctx, span := tracer.Start(ctx, "fetchListing")
	defer span.End()
	span.SetAttributes(telemetry.Int("forum.page", page))

	resp, err := s.http.Do(ctx, &httpclient.Request{
		Method:  "GET",
		URL:     pageURL(s.opts.BaseURL, page),
		Headers: htmlHeaders,
		Timeout: httpclient.TimeoutDetail,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return parseListing(resp.Body, s.opts.BaseURL+"/")
}

// processThread reports whether a thread page was fetched, so the caller
// knows to pace the next request.
func (s *Scraper) processThread(ctx context.Context, lt listingThread, stats *passStats) bool {
	stats.seen++

	if s.opts.OnlyToday && !s.isToday(lt.PostedAt) {
		stats.outOfRange++
		return false
	}

	exists, err := s.store.ThreadExists(ctx, lt.Link)
	if err != nil {
		stats.failed++
		s.logger.Error("failed to check thread", zap.String("link", lt.Link), zap.Error(err))
		return false
	}
	if exists {
		stats.duplicates++
		return false
	}

	description, err := s.fetchDescription(ctx, lt.Link)
	if err != nil {
		stats.failed++
		s.logger.Warn("failed to fetch thread", zap.String("link", lt.Link), zap.Error(err))
		return true
	}

	decision := s.classifier.Classify(ctx, lt.Title, description)
	thread := models.ForumThread{
		Link:        lt.Link,
		ThreadID:    lt.ThreadID,
		Title:       lt.Title,
		Author:      lt.Author,
		Replies:     lt.Replies,
		Views:       lt.Views,
		PostedAt:    lt.PostedAt,
		Description: description,
		Decision:    decision.Label,
		CreatedAt:   s.now().UTC(),
	}

	inserted, err := s.store.InsertThread(ctx, thread)
	if err != nil {
		stats.failed++
		s.logger.Error("failed to store thread", zap.String("link", lt.Link), zap.Error(err))
		return true
	}
	if !inserted {
		stats.duplicates++
		return true
	}
	stats.stored++

	s.logger.Info("stored forum thread",
		zap.String("link", thread.Link),
		zap.String("decision", decision.Label),
		zap.String("model", decision.Model))

	if err := s.recorder.RecordDecision(ctx, audit.Decision{
		Source:    audit.SourceForum,
		Subject:   thread.Link,
		Title:     thread.Title,
		Label:     decision.Label,
		Model:     decision.Model,
		LatencyMS: audit.Latency(decision.Latency),
		CreatedAt: thread.CreatedAt,
	}); err != nil {
		s.logger.Debug("decision not recorded", zap.Error(err))
	}

	if decision.Label == models.DecisionYes {
		stats.approved++
		if s.publisher != nil {
			event := messaging.NewThreadApproved(thread, s.now())
			if err := s.publisher.PublishThreadApproved(ctx, event); err != nil {
				s.logger.Warn("failed to publish approved thread", zap.String("link", thread.Link), zap.Error(err))
			}
		}
	}
	return true
}

func (s *Scraper) fetchDescription(ctx context.Context, link string) (string, error) {
	resp, err := s.http.Do(ctx, &httpclient.Request{
		Method:  "GET",
		URL:     link,
		Headers: htmlHeaders,
		Timeout: httpclient.TimeoutDetail,
	})
	if err != nil {
		return "", err
	}
	return parseThreadBody(resp.Body)
}

func (s *Scraper) isToday(t *time.Time) bool {
	if t == nil {
		return false
	}
	y1, m1, d1 := t.UTC().Date()
	y2, m2, d2 := s.now().UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
