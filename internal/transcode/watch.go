package transcode

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fsnotify/fsnotify"

	"png2lvgl/internal/logging"
)

const (
	defaultDebounceWindow   = 300 * time.Millisecond
	defaultRetryInterval    = 500 * time.Millisecond
	defaultRetryMaxInterval = 5 * time.Second
	defaultRetryMaxTries    = 5
)

// Watch runs one full conversion, then re-runs the whole batch whenever a PNG
// in the source directory is created, written, renamed or removed. Failed
// batches are retried with exponential backoff since an editor may still be
// writing the file. Watch returns nil when ctx is canceled.
func (t *Transcoder) Watch(ctx context.Context) error {
	result, err := t.ConvertAll(ctx)
	if errors.Is(err, ErrInvalidInput) {
		return err
	}
	if err != nil && ctx.Err() == nil {
		t.logger.Warn("initial conversion failed; waiting for changes", logging.Field("error", err))
	}
	srcDir := result.SourceDir
	if srcDir == "" {
		if srcDir, err = ResolveDir(t.opts.SourceDir); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatchUnavailable, err)
	}
	defer watcher.Close()
	if err := watcher.Add(srcDir); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWatchUnavailable, srcDir, err)
	}
	t.logger.Info("watching for PNG changes", logging.Field("dir", srcDir))

	window := t.opts.DebounceWindow
	if window <= 0 {
		window = defaultDebounceWindow
	}
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("stopping watch: context canceled")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				t.logger.Debug("stopping watch: event stream closed")
				return nil
			}
			if !isSourceEvent(event) {
				continue
			}
			t.logger.Debugf("fsnotify event: op=%s path=%s", event.Op.String(), event.Name)
			pending = time.After(window)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watcher error", logging.Field("error", err))
		case <-pending:
			pending = nil
			if err := t.convertWithRetry(ctx); err != nil {
				if errors.Is(err, ErrInvalidInput) {
					return err
				}
				if ctx.Err() == nil {
					t.logger.Error("conversion retries exhausted", logging.Field("error", err))
				}
			}
		}
	}
}

func isSourceEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	return IsSourceName(filepath.Base(event.Name))
}

func (t *Transcoder) convertWithRetry(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = durationOr(t.opts.RetryInterval, defaultRetryInterval)
	retry.MaxInterval = durationOr(t.opts.RetryMaxInterval, defaultRetryMaxInterval)
	retry.Reset()

	maxTries := t.opts.RetryMaxTries
	if maxTries == 0 {
		maxTries = defaultRetryMaxTries
	}

	_, err := backoff.Retry(ctx, func() (Result, error) {
		result, err := t.ConvertAll(ctx)
		if errors.Is(err, ErrInvalidInput) {
			return result, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			t.logger.Debug("retrying conversion batch",
				logging.Field("error", err),
				logging.Field("next_retry", next.String()))
		}),
	)
	return err
}

func durationOr(value time.Duration, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
