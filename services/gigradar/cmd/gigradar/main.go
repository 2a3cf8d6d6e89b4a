package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigradar/services/gigradar/internal/config"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/forum"
	"gigradar/services/gigradar/internal/marketplace"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLIApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		code := 1
		if ec, ok := err.(cli.ExitCoder); ok {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "gigradar",
		Usage:   "Freelance job search and forum hiring feed for Discord",
		Version: version,
		Action:  runBot,
		Commands: []*cli.Command{
			runCmd(),
			scrapeForumCmd(out),
			searchCmd(out),
			detailsCmd(out),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the Discord bot with the forum poller and job monitor",
		Action: runBot,
	}
}

func scrapeForumCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "scrape-forum",
		Usage: "Run a single forum pass and print the number of new threads",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "pages", Aliases: []string{"p"}, Usage: "Listing pages to walk (defaults to FORUM_PAGES)"},
		},
		Action: func(c *cli.Context) error {
			var scraper *forum.Scraper
			return oneShot(c, func(cfg *config.Config) error {
				pages := cfg.ForumPages
				if c.IsSet("pages") {
					pages = c.Int("pages")
				}
				n, err := scraper.Scrape(c.Context, pages)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%d new threads\n", n)
				return err
			}, &scraper)
		},
	}
}

func searchCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the marketplace and print matching jobs as JSON",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "Maximum jobs to return"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("search requires a query", 1)
			}
			var scraper *marketplace.Scraper
			return oneShot(c, func(*config.Config) error {
				jobs, err := scraper.Search(c.Context, c.Args().First(), c.Int("limit"))
				if err != nil {
					return err
				}
				return outputJSON(out, jobs)
			}, &scraper)
		},
	}
}

func detailsCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "details",
		Usage:     "Fetch one job's details and print them as JSON",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("details requires a job id", 1)
			}
			var scraper *marketplace.Scraper
			return oneShot(c, func(*config.Config) error {
				details, err := scraper.Details(c.Context, c.Args().First())
				if err != nil {
					return err
				}
				return outputJSON(out, details)
			}, &scraper)
		},
	}
}

func runBot(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	app := fx.New(coreModule(cfg, logger), botModule())
	if err := app.Err(); err != nil {
		return outputError(err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return outputError(err)
	}
	logger.Info("gigradar started", zap.String("version", version))

	select {
	case <-c.Context.Done():
		logger.Info("shutting down")
	case sig := <-app.Done():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	return app.Stop(stopCtx)
}

// oneShot builds only the parts of the graph the targets need, runs fn and
// tears everything down again.
func oneShot(c *cli.Context, fn func(cfg *config.Config) error, targets ...interface{}) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	app := fx.New(coreModule(cfg, logger), fx.Populate(targets...))
	if err := app.Err(); err != nil {
		return outputError(err)
	}
	if err := app.Start(c.Context); err != nil {
		return outputError(err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			logger.Warn("stopping", zap.Error(err))
		}
	}()

	if err := fn(cfg); err != nil {
		return outputError(err)
	}
	return nil
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("creating logger: %v", err), 1)
	}
	return cfg, logger, nil
}

func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError maps domain errors to exit messages.
func outputError(err error) error {
	switch t := errors.TypeOf(err); t {
	case errors.ErrTypeCredentialsMissing:
		return cli.Exit("marketplace credentials missing: capture headers.json and cookies.json into CREDENTIALS_DIR", 2)
	case "":
		return cli.Exit(err.Error(), 1)
	default:
		return cli.Exit(fmt.Sprintf("[%s] %v", t, err), 1)
	}
}
