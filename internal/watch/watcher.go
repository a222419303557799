// Package watch monitors the inbox directory and feeds new audio files into
// the ingest queue.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"meetgpt/internal/pipeline"
	"meetgpt/internal/queue"
)

const (
	enqueueWindow   = 30 * time.Second
	enqueueInterval = 500 * time.Millisecond
	settleTimeout   = 10 * time.Second
	settlePoll      = 200 * time.Millisecond
)

// Watcher enqueues one ingest job per audio file that appears in the inbox.
// The inbox path has no session guard: dropping the same filename twice means
// the file was replaced, not re-presented by a stale upload widget.
type Watcher struct {
	inboxDir string
	queue    *queue.Queue
	pipeline *pipeline.Pipeline
}

func New(inboxDir string, q *queue.Queue, p *pipeline.Pipeline) *Watcher {
	return &Watcher{inboxDir: inboxDir, queue: q, pipeline: p}
}

// Start creates the inbox directory, enqueues files already present, and then
// watches for new ones until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.inboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	if err := w.backfill(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && pipeline.AllowedExtension(evt.Name) {
					w.enqueue(ctx, evt.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(w.inboxDir)
}

func (w *Watcher) backfill(ctx context.Context) error {
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !pipeline.AllowedExtension(e.Name()) {
			continue
		}
		w.enqueue(ctx, filepath.Join(w.inboxDir, e.Name()))
	}
	return nil
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	name := filepath.Base(path)
	job := queue.Job{
		ID:     name,
		Source: "inbox",
		Run: func(jobCtx context.Context) error {
			return w.ingestFile(jobCtx, path)
		},
	}
	enqueued, dropped := w.queue.EnqueueWithRetry(ctx, job, enqueueWindow, enqueueInterval)
	if dropped {
		log.Printf("inbox file %s dropped, queue stayed full", name)
	} else if !enqueued {
		log.Printf("inbox file %s not enqueued", name)
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) error {
	if err := waitSettled(ctx, path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read inbox file: %w", err)
	}
	if _, err := w.pipeline.Ingest(ctx, nil, filepath.Base(path), data, "inbox"); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		log.Printf("remove ingested inbox file %s: %v", path, err)
	}
	return nil
}

// waitSettled waits for the file size to stop changing. Files dropped into
// the inbox can still be mid-copy when the create event fires.
func waitSettled(ctx context.Context, path string) error {
	deadline := time.Now().Add(settleTimeout)
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat inbox file: %w", err)
		}
		if info.Size() == lastSize && info.Size() > 0 {
			return nil
		}
		lastSize = info.Size()
		if time.Now().After(deadline) {
			return fmt.Errorf("inbox file %s did not settle", filepath.Base(path))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePoll):
		}
	}
}
