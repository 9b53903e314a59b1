// Command distill runs the content-synthesis pipeline: discover developer
// sessions and external content, synthesize daily journals and rolled-up
// blog posts, and fan the results out to configured publishers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/config"
	distilllogger "github.com/aschepis/distill/internal/logger"
	"github.com/aschepis/distill/internal/orchestrator"
)

func main() {
	var (
		configPath = flag.String("config", config.GetConfigPath(), "Path to the .distill.yaml config file")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		daemon     = flag.Bool("daemon", false, "Run as a long-lived daemon on the configured schedule")
		schedule   = flag.String("schedule", "0 0 6 * * *", "Cron expression or Go duration string for -daemon mode")
		from       = flag.String("from", "", "Start date (YYYY-MM-DD) for a one-shot run; defaults to yesterday")
		to         = flag.String("to", "", "End date (YYYY-MM-DD) for a one-shot run; defaults to -from")
		force      = flag.Bool("force", false, "Force regeneration even if journals/posts already exist for the range")
		roots      = flag.String("roots", "", "Comma-separated session-source root directories; defaults to the current directory")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		fmt.Fprintln(os.Stderr, "Error: --logfile and --pretty are mutually exclusive")
		os.Exit(1)
	}

	log, err := distilllogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Str("path", *configPath).Msg("failed to load config")
		os.Exit(1)
	}

	sessionRoots := splitRoots(*roots)
	if len(sessionRoots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			log.Error().Err(err).Msg("failed to determine working directory")
			os.Exit(1)
		}
		sessionRoots = []string{cwd}
	}

	orch, err := orchestrator.New(*cfg, sessionRoots, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to construct orchestrator")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *daemon {
		runDaemon(ctx, orch, *schedule, log)
		return
	}
	runOnce(ctx, orch, *from, *to, *force, log)
}

func runDaemon(ctx context.Context, orch *orchestrator.Orchestrator, schedule string, log zerolog.Logger) {
	sched, err := orchestrator.ParseSchedule(schedule)
	if err != nil {
		log.Error().Err(err).Str("schedule", schedule).Msg("invalid schedule")
		os.Exit(1)
	}

	go func() {
		if err := orch.WatchSessionRoots(ctx); err != nil {
			log.Warn().Err(err).Msg("session root watch stopped")
		}
	}()

	orchestrator.NewDaemon(orch, sched, log).Start(ctx)
}

func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, from, to string, force bool, log zerolog.Logger) {
	if from == "" {
		from = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	}
	if to == "" {
		to = from
	}

	report, err := orch.Run(ctx, orchestrator.RunRequest{StartDate: from, EndDate: to, Force: force})
	if err != nil {
		log.Error().Err(err).Str("from", from).Str("to", to).Msg("run failed")
		os.Exit(1)
	}
	log.Info().
		Int("sessions_ingested", report.SessionsIngested).
		Int("content_items_ingested", report.ContentItemsIngested).
		Int("journals_generated", report.JournalsGenerated).
		Int("journals_skipped", report.JournalsSkipped).
		Int("blog_posts_generated", report.BlogPostsGenerated).
		Int("blog_posts_skipped", report.BlogPostsSkipped).
		Interface("publisher_deliveries", report.PublisherDeliveries).
		Interface("publisher_failures", report.PublisherFailures).
		Strs("pending_dates", report.PendingDates).
		Msg("run complete")
}

func splitRoots(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
