package forum

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gigradar/common/database"
	"gigradar/services/gigradar/internal/audit"
	"gigradar/services/gigradar/internal/classifier"
	"gigradar/services/gigradar/internal/httpclient"
	"gigradar/services/gigradar/internal/models"
	"gigradar/services/gigradar/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClassifier struct {
	mu     sync.Mutex
	titles []string
}

// Classify approves anything that mentions a bot.
func (c *stubClassifier) Classify(_ context.Context, title, description string) classifier.Decision {
	c.mu.Lock()
	c.titles = append(c.titles, title)
	c.mu.Unlock()
	if strings.Contains(strings.ToLower(title+" "+description), "bot") {
		return classifier.Decision{Label: models.DecisionYes, Relevant: true, Model: "stub"}
	}
	return classifier.Decision{Label: models.DecisionNo, Model: "stub"}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ThreadApprovedEvent
}

func (p *recordingPublisher) PublishThreadApproved(_ context.Context, e models.ThreadApprovedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type recordingAudit struct {
	mu        sync.Mutex
	decisions []audit.Decision
}

func (r *recordingAudit) RecordDecision(_ context.Context, d audit.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
	return nil
}

type fixture struct {
	srv        *httptest.Server
	store      *store.Store
	scraper    *Scraper
	classifier *stubClassifier
	publisher  *recordingPublisher
	audit      *recordingAudit
	sleeps     []time.Duration
	hits       map[string]*int32
}

func threadCard(href, title, datetime string) string {
	return `<div class="structItem structItem--thread" data-author="poster">
  <div class="structItem-cell structItem-cell--main">
    <div class="structItem-title"><a href="` + href + `">` + title + `</a></div>
    <div class="structItem-minor"><ul><li class="structItem-startDate"><time class="u-dt" datetime="` + datetime + `">x</time></li></ul></div>
  </div>
  <div class="structItem-cell structItem-cell--meta"><dl class="pairs pairs--justified"><dd>3</dd></dl><dl class="pairs pairs--justified"><dd>120</dd></dl></div>
</div>`
}

func threadPage(body string) string {
	return `<html><body><article class="message message--post"><div class="message-content"><div class="bbWrapper">` +
		body + `</div></div></article></body></html>`
}

func newFixture(t *testing.T, pages map[string]string, opts Options) *fixture {
	t.Helper()
	f := &fixture{hits: make(map[string]*int32)}
	for path := range pages {
		f.hits[path] = new(int32)
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(f.hits[r.URL.Path], 1)
		w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)

	db, err := database.New(context.Background(), database.Options{
		DSN: "sqlite://" + filepath.Join(t.TempDir(), "forum.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f.store = store.New(db, zap.NewNop())
	require.NoError(t, f.store.Migrate(context.Background()))

	client := httpclient.NewClient(httpclient.NewStdTransport(), httpclient.Options{Name: "forum", MaxAttempts: 2}, zap.NewNop()).
		WithSleep(func(context.Context, time.Duration) error { return nil })

	f.classifier = &stubClassifier{}
	f.publisher = &recordingPublisher{}
	f.audit = &recordingAudit{}

	opts.BaseURL = f.srv.URL + "/forums/board.76"
	f.scraper = NewScraper(client, f.store, f.classifier, f.publisher, f.audit, opts, zap.NewNop())
	f.scraper.now = func() time.Time { return time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC) }
	f.scraper.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func TestScrape_DedupAcrossRuns(t *testing.T) {
	pages := map[string]string{
		"/forums/board.76/":   `<html><body>` + threadCard("/threads/foo.12345/", "Need a scraper bot", "2024-06-01T09:00:00Z") + `</body></html>`,
		"/threads/foo.12345/": threadPage("Details here"),
	}
	f := newFixture(t, pages, Options{OnlyToday: true, DetailDelay: 3 * time.Second})

	n, err := f.scraper.Scrape(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.scraper.Scrape(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// the thread page is only fetched for the first run
	require.Equal(t, int32(1), atomic.LoadInt32(f.hits["/threads/foo.12345/"]))
	require.Equal(t, []time.Duration{3 * time.Second}, f.sleeps)

	stored, err := f.store.GetThread(context.Background(), f.srv.URL+"/threads/foo.12345/")
	require.NoError(t, err)
	require.Equal(t, "12345", stored.ThreadID)
	require.Equal(t, "Details here", stored.Description)
	require.Equal(t, 3, *stored.Replies)
	require.Equal(t, 120, *stored.Views)
}

func TestScrape_ClassifierDecisions(t *testing.T) {
	pages := map[string]string{
		"/forums/board.76/": `<html><body>` +
			threadCard("/threads/appium.1/", "Appium Android bot for TikTok", "2024-06-01T09:00:00Z") +
			threadCard("/threads/reels.2/", "Video editor for reels", "2024-06-01T10:00:00Z") +
			`</body></html>`,
		"/threads/appium.1/": threadPage("Must manage proxies and sessions for many accounts."),
		"/threads/reels.2/":  threadPage("Edit 10 short videos."),
	}
	f := newFixture(t, pages, Options{OnlyToday: true})

	n, err := f.scraper.Scrape(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"Appium Android bot for TikTok", "Video editor for reels"}, f.classifier.titles)

	yes, err := f.store.GetThread(context.Background(), f.srv.URL+"/threads/appium.1/")
	require.NoError(t, err)
	require.Equal(t, models.DecisionYes, yes.Decision)

	no, err := f.store.GetThread(context.Background(), f.srv.URL+"/threads/reels.2/")
	require.NoError(t, err)
	require.Equal(t, models.DecisionNo, no.Decision)

	require.Len(t, f.publisher.events, 1)
	require.Equal(t, yes.Link, f.publisher.events[0].Link)
	require.Len(t, f.audit.decisions, 2)

	feed, err := f.store.ListUnpostedApproved(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, yes.Link, feed[0].Link)
}

func TestScrape_OnlyTodayAndPaging(t *testing.T) {
	pages := map[string]string{
		"/forums/board.76/":       `<html><body>` + threadCard("/threads/old.1/", "Old bot job", "2024-05-30T09:00:00Z") + `</body></html>`,
		"/forums/board.76/page-2": `<html><body><p>no threads</p></body></html>`,
		"/threads/old.1/":         threadPage("old"),
	}
	f := newFixture(t, pages, Options{OnlyToday: true, PageDelay: 5 * time.Second, DetailDelay: time.Second})

	n, err := f.scraper.Scrape(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, int32(0), atomic.LoadInt32(f.hits["/threads/old.1/"]))
	require.Equal(t, int32(1), atomic.LoadInt32(f.hits["/forums/board.76/page-2"]))
	require.Equal(t, []time.Duration{5 * time.Second}, f.sleeps)

	f.scraper.opts.OnlyToday = false
	n, err = f.scraper.Scrape(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestScrape_MissingThreadPageUsesPlaceholder(t *testing.T) {
	pages := map[string]string{
		"/forums/board.76/": `<html><body>` + threadCard("/threads/gone.9/", "Bot wanted", "2024-06-01T09:00:00Z") + `</body></html>`,
		"/threads/gone.9/":  `<html><body><div class="blockMessage">removed</div></body></html>`,
	}
	f := newFixture(t, pages, Options{})

	n, err := f.scraper.Scrape(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := f.store.GetThread(context.Background(), f.srv.URL+"/threads/gone.9/")
	require.NoError(t, err)
	require.Equal(t, NoDescription, stored.Description)
}

func TestScrape_AllPagesFail(t *testing.T) {
	f := newFixture(t, map[string]string{}, Options{})
	_, err := f.scraper.Scrape(context.Background(), 1)
	require.Error(t, err)

	_, err = f.scraper.Scrape(context.Background(), 0)
	require.Error(t, err)
}
