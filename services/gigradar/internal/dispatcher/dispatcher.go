package dispatcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/chat"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/httpclient"
	"gigradar/services/gigradar/internal/models"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/dispatcher")

const (
	reactiveLimit = 5
	reactiveShown = 3
	jobsLimit     = 10
	skillsLimit   = 5
	feedBatch     = 10
	minKeywordLen = 2

	reactiveGap = time.Second
	jobsGap     = 500 * time.Millisecond

	markAttempts = 2
)

var stopWords = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "ok": {}, "yes": {}, "no": {}, "thanks": {},
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Job, error)
}

type JobStore interface {
	UpsertJob(ctx context.Context, job models.Job) error
}

type FeedStore interface {
	ListUnpostedApproved(ctx context.Context, limit int) ([]models.ForumThread, error)
	MarkThreadPosted(ctx context.Context, link string) error
}

type Options struct {
	ChannelID       string
	MonitorKeywords []string
	MonitorGap      time.Duration
}

// Dispatcher turns searches and stored threads into chat embeds.
type Dispatcher struct {
	search    Searcher
	jobs      JobStore
	feed      FeedStore
	messenger chat.Messenger
	cooldown  *Cooldown
	opts      Options
	logger    *zap.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	feedMu sync.Mutex
	// unmarked holds links that reached the channel but could not be marked
	// posted. Guarded by feedMu.
	unmarked map[string]struct{}
}

func New(search Searcher, jobs JobStore, feed FeedStore, messenger chat.Messenger, cooldown *Cooldown, opts Options, logger *zap.Logger) *Dispatcher {
	if cooldown == nil {
		cooldown = NewCooldown(DefaultCooldown)
	}
	return &Dispatcher{
		search:    search,
		jobs:      jobs,
		feed:      feed,
		messenger: messenger,
		cooldown:  cooldown,
		opts:      opts,
		logger:    logger,
		sleep:     httpclient.Sleep,
		unmarked:  make(map[string]struct{}),
	}
}

// ValidKeyword rejects keywords shorter than two characters and greetings.
func ValidKeyword(keyword string) bool {
	k := strings.TrimSpace(keyword)
	if len([]rune(k)) < minKeywordLen {
		return false
	}
	_, stop := stopWords[strings.ToLower(k)]
	return !stop
}

// HandleKeyword answers a plain channel message with a short result list.
// It reports whether the request was accepted.
func (d *Dispatcher) HandleKeyword(ctx context.Context, msg chat.Message, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if !ValidKeyword(keyword) {
		return false
	}
	if ok, wait := d.cooldown.Allow(msg.AuthorID); !ok {
		d.logger.Debug("user on cooldown",
			zap.String("user", msg.AuthorID),
			zap.Duration("remaining", wait))
		d.react(ctx, msg, chat.ReactionCooldown)
		return false
	}

	ctx, span := tracer.Start(ctx, "HandleKeyword")
	defer span.End()
	span.SetAttributes(telemetry.String("keyword", keyword))

	jobs, ok := d.lookup(ctx, msg, keyword, reactiveLimit)
	if !ok {
		return true
	}

	shown := jobs
	if len(shown) > reactiveShown {
		shown = shown[:reactiveShown]
	}
	embeds := []chat.Embed{headerEmbed(keyword, len(jobs), ModeReactive)}
	for _, job := range shown {
		embeds = append(embeds, jobEmbed(job, ModeReactive))
	}
	if hidden := len(jobs) - len(shown); hidden > 0 {
		embeds = append(embeds, overflowEmbed(keyword, hidden))
	}
	d.deliver(ctx, msg, embeds, reactiveGap)
	return true
}

// HandleJobs serves !jobs <keyword>.
func (d *Dispatcher) HandleJobs(ctx context.Context, msg chat.Message, keyword string) {
	keyword = strings.TrimSpace(keyword)
	if !ValidKeyword(keyword) {
		d.send(ctx, msg.ChannelID, usageEmbed("jobs"))
		return
	}

	ctx, span := tracer.Start(ctx, "HandleJobs")
	defer span.End()
	span.SetAttributes(telemetry.String("keyword", keyword))

	jobs, ok := d.lookup(ctx, msg, keyword, jobsLimit)
	if !ok {
		return
	}
	embeds := []chat.Embed{headerEmbed(keyword, len(jobs), ModeJobs)}
	for _, job := range jobs {
		embeds = append(embeds, jobEmbed(job, ModeJobs))
	}
	d.deliver(ctx, msg, embeds, jobsGap)
}

// HandleSkills serves !skills <keyword>: a skill histogram followed by the jobs.
func (d *Dispatcher) HandleSkills(ctx context.Context, msg chat.Message, keyword string) {
	keyword = strings.TrimSpace(keyword)
	if !ValidKeyword(keyword) {
		d.send(ctx, msg.ChannelID, usageEmbed("skills"))
		return
	}

	ctx, span := tracer.Start(ctx, "HandleSkills")
	defer span.End()
	span.SetAttributes(telemetry.String("keyword", keyword))

	jobs, ok := d.lookup(ctx, msg, keyword, skillsLimit)
	if !ok {
		return
	}
	embeds := []chat.Embed{
		headerEmbed(keyword, len(jobs), ModeSkills),
		histogramEmbed(keyword, skillHistogram(jobs)),
	}
	for _, job := range jobs {
		embeds = append(embeds, jobEmbed(job, ModeSkills))
	}
	d.deliver(ctx, msg, embeds, reactiveGap)
}

func (d *Dispatcher) HandleHelp(ctx context.Context, msg chat.Message) {
	d.send(ctx, msg.ChannelID, helpEmbed())
}

// lookup runs the search with the loading indicator and handles the empty
// and failed cases. It reports false when nothing is left to render.
func (d *Dispatcher) lookup(ctx context.Context, msg chat.Message, keyword string, limit int) ([]models.Job, bool) {
	d.react(ctx, msg, chat.ReactionSearching)

	jobs, err := d.search.Search(ctx, keyword, limit)
	if err != nil {
		d.logger.Error("job search failed",
			zap.String("keyword", keyword),
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err))
		d.send(ctx, msg.ChannelID, errorEmbed())
		d.react(ctx, msg, chat.ReactionError)
		return nil, false
	}
	if len(jobs) == 0 {
		d.send(ctx, msg.ChannelID, noResultsEmbed(keyword))
		d.react(ctx, msg, chat.ReactionNoResults)
		return nil, false
	}
	d.persist(ctx, jobs)
	return jobs, true
}

func (d *Dispatcher) persist(ctx context.Context, jobs []models.Job) {
	if d.jobs == nil {
		return
	}
	for _, job := range jobs {
		if err := d.jobs.UpsertJob(ctx, job); err != nil {
			d.logger.Warn("failed to store job", zap.String("source_id", job.SourceID), zap.Error(err))
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg chat.Message, embeds []chat.Embed, gap time.Duration) {
	for i, e := range embeds {
		if i > 0 {
			if err := d.sleep(ctx, gap); err != nil {
				return
			}
		}
		if err := d.messenger.SendEmbed(ctx, msg.ChannelID, e); err != nil {
			d.logger.Error("failed to send embed", zap.Error(err))
			d.react(ctx, msg, chat.ReactionError)
			return
		}
	}
	d.react(ctx, msg, chat.ReactionDone)
}

func (d *Dispatcher) send(ctx context.Context, channelID string, e chat.Embed) {
	if err := d.messenger.SendEmbed(ctx, channelID, e); err != nil {
		d.logger.Error("failed to send embed", zap.Error(err))
	}
}

func (d *Dispatcher) react(ctx context.Context, msg chat.Message, emoji string) {
	if msg.ID == "" {
		return
	}
	if err := d.messenger.React(ctx, msg.ChannelID, msg.ID, emoji); err != nil {
		d.logger.Debug("failed to add reaction", zap.String("emoji", emoji), zap.Error(err))
	}
}

// MonitorTick posts one alert per watch-list keyword. An auth failure ends
// the tick early; the next tick tries again.
func (d *Dispatcher) MonitorTick(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "MonitorTick")
	defer span.End()

	posted := 0
	for i, keyword := range d.opts.MonitorKeywords {
		if i > 0 {
			if err := d.sleep(ctx, d.opts.MonitorGap); err != nil {
				return err
			}
		}
		jobs, err := d.search.Search(ctx, keyword, 1)
		if err != nil {
			if errors.Is(err, errors.ErrTypeAuthExpired) {
				d.logger.Warn("marketplace degraded, skipping monitor tick", zap.Error(err))
				return err
			}
			d.logger.Warn("monitor search failed", zap.String("keyword", keyword), zap.Error(err))
			continue
		}
		if len(jobs) == 0 {
			continue
		}
		d.persist(ctx, jobs[:1])
		if err := d.messenger.SendEmbed(ctx, d.opts.ChannelID, jobEmbed(jobs[0], ModeMonitor)); err != nil {
			d.logger.Error("failed to send monitor alert", zap.String("keyword", keyword), zap.Error(err))
			continue
		}
		posted++
	}
	d.logger.Info("monitor tick complete", zap.Int("alerts", posted))
	return nil
}

// FlushForumFeed posts approved threads that have not been posted yet,
// oldest first, and marks each one after a successful send. A thread that
// was sent but could not be marked is not sent again.
func (d *Dispatcher) FlushForumFeed(ctx context.Context) (int, error) {
	d.feedMu.Lock()
	defer d.feedMu.Unlock()

	ctx, span := tracer.Start(ctx, "FlushForumFeed")
	defer span.End()

	threads, err := d.feed.ListUnpostedApproved(ctx, feedBatch)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	posted := 0
	for _, t := range threads {
		if _, sent := d.unmarked[t.Link]; sent {
			if d.markPosted(ctx, t.Link) {
				delete(d.unmarked, t.Link)
			}
			continue
		}
		if err := d.messenger.SendEmbed(ctx, d.opts.ChannelID, forumEmbed(t)); err != nil {
			d.logger.Error("failed to post forum thread", zap.String("link", t.Link), zap.Error(err))
			continue
		}
		posted++
		if !d.markPosted(ctx, t.Link) {
			d.unmarked[t.Link] = struct{}{}
		}
	}

	span.SetAttributes(telemetry.Int("feed.posted", posted))
	if posted > 0 {
		d.logger.Info("posted forum threads", zap.Int("count", posted))
	}
	return posted, nil
}

func (d *Dispatcher) markPosted(ctx context.Context, link string) bool {
	var err error
	for i := 0; i < markAttempts; i++ {
		if err = d.feed.MarkThreadPosted(ctx, link); err == nil {
			return true
		}
	}
	d.logger.Error("failed to mark thread posted", zap.String("link", link), zap.Error(err))
	return false
}
