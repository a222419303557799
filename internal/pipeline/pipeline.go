// Package pipeline implements the meeting lifecycle: accept an audio upload,
// transcribe it, and lazily summarize on first view.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"meetgpt/internal/events"
	"meetgpt/internal/ledger"
	"meetgpt/internal/metrics"
	"meetgpt/internal/store"
)

var (
	// ErrAlreadyProcessed reports an upload skipped by the session guard.
	ErrAlreadyProcessed = errors.New("file already processed in this session")
	// ErrUnsupportedType reports an upload with a non-audio extension.
	ErrUnsupportedType = errors.New("unsupported file type")
)

var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".flac": true,
}

// AllowedExtension reports whether the filename carries an accepted audio
// extension.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Transcriber converts audio bytes into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Summarizer produces a meeting summary from the content of the user turn.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// Pipeline wires the artifact store, the ingest ledger, and the LLM
// collaborators together.
type Pipeline struct {
	store       *store.Store
	ledger      *ledger.Ledger
	transcriber Transcriber
	summarizer  Summarizer
	bus         *events.Bus
	metrics     *metrics.Metrics
	now         func() time.Time
}

// View is everything needed to render one meeting.
type View struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`
	AudioName  string `json:"audio_name"`
	Audio      []byte `json:"-"`
}

func New(st *store.Store, led *ledger.Ledger, tr Transcriber, sum Summarizer, bus *events.Bus, m *metrics.Metrics, now func() time.Time) *Pipeline {
	if now == nil {
		now = func() time.Time { return time.Now().Truncate(time.Second) }
	}
	return &Pipeline{store: st, ledger: led, transcriber: tr, summarizer: sum, bus: bus, metrics: m, now: now}
}

// Ingest accepts one audio file: creates the meeting folder, persists the
// audio, transcribes it, and writes the transcript. The session guard skips
// an upload whose filename matches the immediately preceding accepted upload.
// A transcription failure leaves the folder and audio in place with no
// transcript file, and the error propagates to the caller.
func (p *Pipeline) Ingest(ctx context.Context, session *Session, filename string, audio []byte, source string) (string, error) {
	filename = filepath.Base(filename)
	if !AllowedExtension(filename) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
	}

	ingestID := uuid.NewString()
	now := p.now()
	hash := HashBytes(audio)

	if session != nil && session.Seen(filename) {
		p.metrics.RecordSkip()
		p.recordSkip(ctx, ingestID, filename, source, hash, int64(len(audio)), now)
		return "", fmt.Errorf("%w: %s", ErrAlreadyProcessed, filename)
	}

	duplicateOf, err := p.ledger.FindByHash(ctx, hash)
	if err != nil {
		log.Printf("duplicate lookup failed for %s: %v", filename, err)
		duplicateOf = nil
	}
	if err := p.ledger.Record(ctx, ledger.Ingest{
		ID:          ingestID,
		Filename:    filename,
		Source:      source,
		SizeBytes:   int64(len(audio)),
		ContentHash: hash,
		DuplicateOf: duplicateOf,
		Status:      ledger.StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return "", fmt.Errorf("record ingest: %w", err)
	}
	p.publish(ingestID, "", filename, ledger.StatusProcessing, "")

	key, err := p.store.CreateMeeting(now)
	if err != nil {
		p.finish(ctx, ingestID, ledger.StatusError, nil, err)
		return "", err
	}
	if _, err := p.store.SaveAudio(key, filename, audio); err != nil {
		p.finish(ctx, ingestID, ledger.StatusError, &key, err)
		return "", err
	}

	// The upload counts as accepted once the audio is on disk, before
	// transcription. A failed transcription does not re-open the guard.
	if session != nil {
		session.Mark(filename)
	}
	p.metrics.RecordUpload()

	transcript, err := p.transcriber.Transcribe(ctx, filename, audio)
	p.metrics.RecordTranscription(err)
	if err != nil {
		err = fmt.Errorf("transcription failed: %w", err)
		p.finish(ctx, ingestID, ledger.StatusError, &key, err)
		p.publish(ingestID, key, filename, ledger.StatusError, err.Error())
		return key, err
	}
	if err := p.store.WriteText(key, store.FieldTranscript, transcript); err != nil {
		p.finish(ctx, ingestID, ledger.StatusError, &key, err)
		return key, err
	}

	p.finish(ctx, ingestID, ledger.StatusDone, &key, nil)
	p.publish(ingestID, key, filename, ledger.StatusDone, "")
	log.Printf("ingest done key=%s file=%s bytes=%d", key, filename, len(audio))
	return key, nil
}

// ViewMeeting assembles a meeting for display. The audio file is required;
// a meeting without one fails with store.ErrAudioMissing before any summary
// work happens. The summary is generated on first view, once a transcript
// exists, and written back so later views reuse it. Existence of the summary
// file, not its content, decides whether generation runs.
func (p *Pipeline) ViewMeeting(ctx context.Context, key string) (View, error) {
	label, err := store.DisplayLabel(key)
	if err != nil {
		return View{}, err
	}

	audioName, audio, err := p.store.AudioFile(key)
	if err != nil {
		return View{}, err
	}

	v := View{
		Key:        key,
		Label:      label,
		Title:      p.store.ReadText(key, store.FieldTitle),
		Transcript: p.store.ReadText(key, store.FieldTranscript),
		AudioName:  audioName,
		Audio:      audio,
	}

	if p.store.HasField(key, store.FieldSummary) {
		v.Summary = p.store.ReadText(key, store.FieldSummary)
		return v, nil
	}
	if !p.store.HasField(key, store.FieldTranscript) {
		return v, nil
	}

	summary, err := p.summarizer.Summarize(ctx, "####"+v.Transcript+"####")
	p.metrics.RecordSummary(err)
	if err != nil {
		return View{}, fmt.Errorf("summary generation failed: %w", err)
	}
	if err := p.store.WriteText(key, store.FieldSummary, summary); err != nil {
		return View{}, err
	}
	v.Summary = summary
	return v, nil
}

// Audio returns the meeting's audio file without touching the summary. Used
// by the audio endpoint so streaming playback never triggers LLM spend.
func (p *Pipeline) Audio(key string) (string, []byte, error) {
	if _, err := store.DisplayLabel(key); err != nil {
		return "", nil, err
	}
	return p.store.AudioFile(key)
}

// SaveTitle overwrites the meeting title verbatim. Unlike the summary, the
// title can be rewritten at will.
func (p *Pipeline) SaveTitle(key, title string) error {
	if _, err := store.DisplayLabel(key); err != nil {
		return err
	}
	return p.store.WriteText(key, store.FieldTitle, title)
}

// List returns meetings newest first.
func (p *Pipeline) List() ([]store.Meeting, error) {
	return p.store.List()
}

// HashBytes returns the hex BLAKE3 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) recordSkip(ctx context.Context, id, filename, source, hash string, size int64, now time.Time) {
	err := p.ledger.Record(ctx, ledger.Ingest{
		ID:          id,
		Filename:    filename,
		Source:      source,
		SizeBytes:   size,
		ContentHash: hash,
		Status:      ledger.StatusSkipped,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		log.Printf("record skipped ingest %s: %v", id, err)
	}
	p.publish(id, "", filename, ledger.StatusSkipped, "")
}

func (p *Pipeline) finish(ctx context.Context, id, status string, key *string, cause error) {
	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}
	if err := p.ledger.Finish(ctx, id, status, key, errMsg, p.now()); err != nil {
		log.Printf("finish ingest %s: %v", id, err)
	}
}

func (p *Pipeline) publish(id, key, filename, status, errMsg string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(events.IngestEvent{
		IngestID:   id,
		MeetingKey: key,
		Filename:   filename,
		Status:     status,
		Error:      errMsg,
		At:         p.now(),
	})
}
