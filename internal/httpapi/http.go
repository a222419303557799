// Package httpapi exposes the service over HTTP: the JSON API, the SSE event
// stream, the ops surface, and the embedded single-page UI.
package httpapi

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"meetgpt/internal/config"
	"meetgpt/internal/events"
	"meetgpt/internal/export"
	"meetgpt/internal/ledger"
	"meetgpt/internal/metrics"
	"meetgpt/internal/pipeline"
	"meetgpt/internal/queue"
	"meetgpt/internal/store"
)

//go:embed static/index.html
var embeddedStatic embed.FS

// maxUploadBytes bounds the multipart body; transcription rejects anything
// over 25MB anyway.
const maxUploadBytes = 26 * 1024 * 1024

// Router builds the HTTP handlers.
type Router struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	ledger   *ledger.Ledger
	queue    *queue.Queue
	bus      *events.Bus
	metrics  *metrics.Metrics
	session  *pipeline.Session
}

func NewRouter(cfg config.Config, p *pipeline.Pipeline, led *ledger.Ledger, q *queue.Queue, bus *events.Bus, m *metrics.Metrics) *Router {
	return &Router{
		cfg:      cfg,
		pipeline: p,
		ledger:   led,
		queue:    q,
		bus:      bus,
		metrics:  m,
		// Single-user app: one session guard for the whole server.
		session: pipeline.NewSession(),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", rt.index)
	mux.HandleFunc("/api/upload", rt.upload)
	mux.HandleFunc("/api/meetings", rt.meetings)
	mux.HandleFunc("/api/meeting/", rt.meeting)
	mux.HandleFunc("/api/ingests", rt.ingests)
	mux.HandleFunc("/api/events", rt.eventStream)
	mux.HandleFunc("/ops/status", rt.status)
	mux.HandleFunc("/ops/health", rt.health)
}

func (rt *Router) index(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	data, err := embeddedStatic.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "ui unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (rt *Router) upload(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	file, header, err := req.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key, err := rt.pipeline.Ingest(req.Context(), rt.session, header.Filename, data, "upload")
	switch {
	case errors.Is(err, pipeline.ErrAlreadyProcessed):
		respondJSON(w, map[string]any{"status": "skipped", "filename": header.Filename})
		return
	case errors.Is(err, pipeline.ErrUnsupportedType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		// The folder and audio survive a transcription failure; report the
		// key so the client can find the partial meeting.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{"error": err.Error(), "key": key})
		return
	}
	respondJSON(w, map[string]any{"status": "ok", "key": key})
}

func (rt *Router) meetings(w http.ResponseWriter, req *http.Request) {
	list, err := rt.pipeline.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []store.Meeting{}
	}
	respondJSON(w, list)
}

// meeting dispatches /api/meeting/{key}[/title|/audio|/download].
func (rt *Router) meeting(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/api/meeting/")
	key, action, _ := strings.Cut(rest, "/")
	if key == "" {
		http.NotFound(w, req)
		return
	}

	switch action {
	case "":
		rt.meetingView(w, req, key)
	case "title":
		rt.meetingTitle(w, req, key)
	case "audio":
		rt.meetingAudio(w, req, key)
	case "download":
		rt.meetingDownload(w, req, key)
	default:
		http.NotFound(w, req)
	}
}

func (rt *Router) meetingView(w http.ResponseWriter, req *http.Request, key string) {
	v, err := rt.pipeline.ViewMeeting(req.Context(), key)
	if err != nil {
		respondViewError(w, err)
		return
	}
	respondJSON(w, v)
}

func (rt *Router) meetingTitle(w http.ResponseWriter, req *http.Request, key string) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rt.pipeline.SaveTitle(key, body.Title); err != nil {
		respondViewError(w, err)
		return
	}
	respondJSON(w, map[string]any{"status": "ok"})
}

func (rt *Router) meetingAudio(w http.ResponseWriter, req *http.Request, key string) {
	name, data, err := rt.pipeline.Audio(key)
	if err != nil {
		respondViewError(w, err)
		return
	}
	w.Header().Set("Content-Type", audioContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	w.Write(data)
}

func (rt *Router) meetingDownload(w http.ResponseWriter, req *http.Request, key string) {
	format := req.URL.Query().Get("format")
	if format == "" {
		format = export.FormatText
	}
	v, err := rt.pipeline.ViewMeeting(req.Context(), key)
	if err != nil {
		respondViewError(w, err)
		return
	}
	name, contentType, data, err := export.Render(v, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

func (rt *Router) ingests(w http.ResponseWriter, req *http.Request) {
	list, err := rt.ledger.List(req.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []ledger.Ingest{}
	}
	respondJSON(w, list)
}

func (rt *Router) eventStream(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := rt.bus.Subscribe()
	defer cancel()
	for {
		select {
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-req.Context().Done():
			return
		}
	}
}

func (rt *Router) status(w http.ResponseWriter, req *http.Request) {
	stats := rt.queue.Stats()
	rt.metrics.UpdateQueue(stats.Length, stats.Capacity, stats.WorkerCount)
	ledgerOK := rt.ledger.Health(req.Context()) == nil
	respondJSON(w, map[string]any{
		"metrics":   rt.metrics.Snapshot(),
		"queue":     stats,
		"ledger_ok": ledgerOK,
		"config": map[string]any{
			"meetings_dir":    rt.cfg.MeetingsDir,
			"inbox_dir":       rt.cfg.InboxDir,
			"workers":         rt.cfg.WorkerCount,
			"watcher_enabled": rt.cfg.EnableWatcher,
			"transcribe":      rt.cfg.LLM.TranscribeModel,
			"chat":            rt.cfg.LLM.ChatModel,
		},
	})
}

func (rt *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := rt.ledger.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !rt.queue.Healthy() {
		http.Error(w, "queue not started", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondViewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrMalformedKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrAudioMissing):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func audioContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
