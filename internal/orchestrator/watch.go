package orchestrator

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces a burst of filesystem events (a chat client
// writing a session log touches it several times in quick succession)
// into a single triggered run.
const watchDebounce = 5 * time.Second

// WatchSessionRoots watches the orchestrator's configured session roots
// and runs an extra pass for today's date shortly after new activity is
// observed, on top of Daemon's cron-driven schedule. This lets a
// long-running daemon pick up a session as soon as it's written rather
// than waiting for the next scheduled tick — the directory-watch mode
// spec.md's daemon note leaves as an implementation choice.
func (o *Orchestrator) WatchSessionRoots(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range o.sessionRoots {
		if err := watcher.Add(root); err != nil {
			o.logger.Warn().Err(err).Str("root", root).Msg("orchestrator: watch root failed")
		}
	}

	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn().Err(err).Msg("orchestrator: watch error")
		case <-trigger:
			today := time.Now().Format("2006-01-02")
			o.logger.Info().Str("date", today).Msg("orchestrator: session activity detected, running extra pass")
			if _, err := o.Run(ctx, RunRequest{StartDate: today, EndDate: today}); err != nil {
				o.logger.Warn().Err(err).Msg("orchestrator: watch-triggered run failed")
			}
		}
	}
}
