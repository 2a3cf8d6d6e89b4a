package main

import (
	"context"
	"time"

	"gigradar/common/cache"
	"gigradar/common/cache/memory"
	"gigradar/common/cache/redis"
	"gigradar/common/database"
	"gigradar/common/database/schema"
	"gigradar/common/database/schema/migrations"
	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/audit"
	"gigradar/services/gigradar/internal/bot"
	"gigradar/services/gigradar/internal/chat"
	"gigradar/services/gigradar/internal/chat/discord"
	"gigradar/services/gigradar/internal/classifier"
	"gigradar/services/gigradar/internal/config"
	"gigradar/services/gigradar/internal/credentials"
	"gigradar/services/gigradar/internal/dispatcher"
	"gigradar/services/gigradar/internal/forum"
	"gigradar/services/gigradar/internal/httpclient"
	"gigradar/services/gigradar/internal/marketplace"
	"gigradar/services/gigradar/internal/messaging"
	"gigradar/services/gigradar/internal/models"
	"gigradar/services/gigradar/internal/scheduler"
	"gigradar/services/gigradar/internal/store"
	"gigradar/services/gigradar/internal/workers"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const serviceName = "gigradar"

// runContext outlives fx start/stop hook deadlines; it is cancelled on shutdown.
type runContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newRunContext(lc fx.Lifecycle) *runContext {
	ctx, cancel := context.WithCancel(context.Background())
	rc := &runContext{ctx: ctx, cancel: cancel}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			rc.cancel()
			return nil
		},
	})
	return rc
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.LogFormat == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newTracing(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) error {
	shutdown, err := telemetry.InitTracer(context.Background(), serviceName, version, cfg.OTelCollectorURL, logger)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			shutdown(ctx)
			return nil
		},
	})
	return nil
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*database.Database, error) {
	db, err := database.New(context.Background(), database.Options{DSN: cfg.DatabaseDSN}, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func newStore(db *database.Database, logger *zap.Logger) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st := store.New(db, logger)
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// newCache prefers Redis and falls back to the in-process cache when it
// is unset or unreachable.
func newCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) cache.Cache {
	opts := cache.DefaultOptions()
	opts.DefaultTTL = cfg.CacheTTL

	var c cache.Cache
	if cfg.RedisAddr != "" {
		opts.RedisURL = cfg.RedisAddr
		opts.RedisPassword = cfg.RedisPassword
		opts.RedisDB = cfg.RedisDB

		rc := redis.New(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rc.Ping(ctx)
		cancel()
		if err == nil {
			logger.Info("using redis cache", zap.String("addr", cfg.RedisAddr))
			c = rc
		} else {
			logger.Warn("redis unavailable, falling back to memory cache", zap.Error(err))
			_ = rc.Close()
		}
	}
	if c == nil {
		c = memory.New(opts)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
	return c
}

func newTransport(cfg *config.Config, logger *zap.Logger) (httpclient.Transport, error) {
	if !cfg.HTTPImpersonate {
		return httpclient.NewStdTransport(), nil
	}
	t, err := httpclient.NewImpersonatingTransport()
	if err != nil {
		return nil, err
	}
	logger.Debug("using browser-impersonating transport")
	return t, nil
}

func newMarketplace(cfg *config.Config, transport httpclient.Transport, c cache.Cache, logger *zap.Logger) (*marketplace.Scraper, error) {
	creds := credentials.NewStore(cfg.CredentialsDir, logger)
	bundle, err := creds.Load()
	if err != nil {
		return nil, err
	}
	if _, err := creds.EnsureVisitorID(bundle); err != nil {
		logger.Warn("could not persist visitor id", zap.Error(err))
	}

	client := httpclient.NewClient(transport, httpclient.Options{
		Name:        "marketplace",
		MaxAttempts: cfg.HTTPMaxAttempts,
		BaseDelay:   cfg.HTTPBaseDelay,
	}, logger)

	session := marketplace.NewSession(bundle)
	refresher := marketplace.NewRefresher(client, session, creds, cfg.MarketplaceBaseURL, logger)
	return marketplace.NewScraper(client, session, refresher, c, marketplace.Options{
		BaseURL:  cfg.MarketplaceBaseURL,
		CacheTTL: cfg.CacheTTL,
	}, logger), nil
}

func newClassifier(cfg *config.Config, logger *zap.Logger) *classifier.Classifier {
	completer := classifier.NewOpenAICompleter(cfg.LLMAPIKey, cfg.LLMBaseURL)
	return classifier.New(completer, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMFallbackModels, logger)
}

func newBus(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (messaging.Bus, error) {
	var bus messaging.Bus
	if cfg.NATSURL == "" {
		logger.Info("NATS_URL not set, using in-process event bus")
		bus = messaging.NewLocalBus(logger)
	} else {
		nb, err := messaging.NewNATSBus(cfg.NATSURL, cfg.NATSConnTimeout, logger)
		if err != nil {
			return nil, err
		}
		bus = nb
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			bus.Close()
			return nil
		},
	})
	return bus, nil
}

// newRecorder writes classifier decisions to ClickHouse when configured.
func newRecorder(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (audit.Recorder, error) {
	if cfg.ClickHouseDSN == "" {
		return audit.Noop{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ch, err := database.NewClickHouse(ctx, database.Options{
		DSN:      cfg.ClickHouseDSN,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
	}, logger)
	if err != nil {
		return nil, err
	}
	if _, err := schema.NewMigrator(ch, logger).Migrate(ctx, migrations.Analytics); err != nil {
		_ = ch.Close()
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return ch.Close()
		},
	})
	return audit.NewSQLRecorder(ch.DB(), logger), nil
}

func newForum(cfg *config.Config, transport httpclient.Transport, st *store.Store, cl *classifier.Classifier, bus messaging.Bus, recorder audit.Recorder, logger *zap.Logger) *forum.Scraper {
	client := httpclient.NewClient(transport, httpclient.Options{
		Name:        "forum",
		MaxAttempts: cfg.ForumMaxRetries,
		BaseDelay:   cfg.ForumRetryDelay,
	}, logger)
	return forum.NewScraper(client, st, cl, bus, recorder, forum.Options{
		BaseURL:     cfg.ForumBaseURL,
		OnlyToday:   cfg.ForumOnlyToday,
		PageDelay:   cfg.ForumPageDelay,
		DetailDelay: cfg.ForumDetailDelay,
	}, logger)
}

func newDiscord(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*discord.Client, error) {
	client, err := discord.New(cfg.DiscordBotToken, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return client.Open()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newDispatcher(cfg *config.Config, scraper *marketplace.Scraper, st *store.Store, client *discord.Client, logger *zap.Logger) *dispatcher.Dispatcher {
	var messenger chat.Messenger = client
	return dispatcher.New(scraper, st, st, messenger, dispatcher.NewCooldown(dispatcher.DefaultCooldown), dispatcher.Options{
		ChannelID:       cfg.DiscordChannelID,
		MonitorKeywords: cfg.MonitorKeywords,
		MonitorGap:      cfg.MonitorGap,
	}, logger)
}

func newPool(lc fx.Lifecycle, rc *runContext, cfg *config.Config, logger *zap.Logger) *workers.Pool {
	pool := workers.NewPool(rc.ctx, cfg.EventWorkers, cfg.EventWorkers*4, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool
}

func newScheduler(cfg *config.Config, fs *forum.Scraper, d *dispatcher.Dispatcher, logger *zap.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(logger)
	jobs := []scheduler.Job{
		{
			Name:       "forum-scrape",
			Interval:   cfg.ForumScrapeInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := fs.Scrape(ctx, cfg.ForumPages)
				return err
			},
		},
		{
			Name:     "forum-feed",
			Interval: cfg.ForumFeedInterval,
			Run: func(ctx context.Context) error {
				_, err := d.FlushForumFeed(ctx)
				return err
			},
		},
		{
			Name:     "job-monitor",
			Interval: cfg.MonitorInterval,
			Run:      d.MonitorTick,
		},
	}
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// registerBot connects the gateway to the router, starts the scheduler once
// the gateway is ready and flushes the feed whenever a thread is approved.
func registerBot(lc fx.Lifecycle, rc *runContext, client *discord.Client, d *dispatcher.Dispatcher, pool *workers.Pool, bus messaging.Bus, s *scheduler.Scheduler, cfg *config.Config, logger *zap.Logger) error {
	router := bot.NewRouter(d, pool, cfg.DiscordChannelID, logger)
	client.OnMessage(router.Route)

	unsubscribe, err := bus.SubscribeThreadApproved(func(ctx context.Context, event models.ThreadApprovedEvent) {
		logger.Debug("thread approved",
			zap.String("event_id", event.ID),
			zap.String("link", event.Link))
		pool.Submit("forum-feed", func(ctx context.Context) {
			if _, err := d.FlushForumFeed(ctx); err != nil {
				logger.Error("flushing forum feed", zap.Error(err))
			}
		})
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				select {
				case <-client.Ready():
					s.Start(rc.ctx)
				case <-rc.ctx.Done():
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := unsubscribe(); err != nil {
				logger.Warn("unsubscribing from approved threads", zap.Error(err))
			}
			return s.Stop(ctx)
		},
	})
	return nil
}

func fxLogger(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
}

// coreModule provides everything the one-shot commands and the bot share.
func coreModule(cfg *config.Config, logger *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, logger),
		fx.Provide(
			newDatabase,
			newStore,
			newCache,
			newTransport,
			newMarketplace,
			newClassifier,
			newBus,
			newRecorder,
			newForum,
		),
		fx.Invoke(newTracing),
		fx.WithLogger(fxLogger),
	)
}

func botModule() fx.Option {
	return fx.Options(
		fx.Provide(
			newRunContext,
			newDiscord,
			newDispatcher,
			newPool,
			newScheduler,
		),
		fx.Invoke(registerBot),
	)
}
