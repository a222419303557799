// Package app wires the service components together and runs them.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"meetgpt/internal/config"
	"meetgpt/internal/events"
	"meetgpt/internal/httpapi"
	"meetgpt/internal/ledger"
	"meetgpt/internal/metrics"
	"meetgpt/internal/openai"
	"meetgpt/internal/pipeline"
	"meetgpt/internal/queue"
	"meetgpt/internal/store"
	"meetgpt/internal/watch"
)

// App owns the store, ledger, worker queue, watcher, and HTTP server.
type App struct {
	cfg     config.Config
	store   *store.Store
	ledger  *ledger.Ledger
	queue   *queue.Queue
	watcher *watch.Watcher
	mux     *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.MeetingsDir)
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	client := openai.New(cfg.LLM, nil)
	bus := events.NewBus()
	m := metrics.New()
	p := pipeline.New(st, led, client, client, bus, m, config.Now)
	q := queue.New(cfg.JobQueueSize, cfg.WorkerCount, time.Duration(cfg.JobTimeoutSec)*time.Second)

	mux := http.NewServeMux()
	httpapi.NewRouter(cfg, p, led, q, bus, m).Register(mux)

	a := &App{cfg: cfg, store: st, ledger: led, queue: q, mux: mux}
	if cfg.EnableWatcher {
		a.watcher = watch.New(cfg.InboxDir, q, p)
	}
	return a, nil
}

// Run starts the workers, the inbox watcher, and the HTTP server, and blocks
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start(ctx)
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return err
		}
	} else {
		log.Println("watcher disabled")
	}

	srv := &http.Server{Addr: a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		a.queue.Stop(shutdownCtx)
		_ = a.ledger.Close()
	}()
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Mux() *http.ServeMux { return a.mux }
