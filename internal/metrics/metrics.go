// Package metrics keeps lock-free operational counters for the service.
package metrics

import "sync/atomic"

// Metrics tracks ingest and summarization activity plus queue gauges.
type Metrics struct {
	uploadsAccepted int64
	uploadsSkipped  int64
	transcriptions  int64
	transcriptFails int64
	summaries       int64
	summaryFails    int64

	queueLength   int64
	queueCapacity int64
	workerCount   int64
}

// Snapshot is a consistent read-only view of the counters.
type Snapshot struct {
	UploadsAccepted    int64 `json:"uploads_accepted"`
	UploadsSkipped     int64 `json:"uploads_skipped"`
	Transcriptions     int64 `json:"transcriptions"`
	TranscriptionFails int64 `json:"transcription_fails"`
	Summaries          int64 `json:"summaries"`
	SummaryFails       int64 `json:"summary_fails"`
	QueueLength        int   `json:"queue_length"`
	QueueCapacity      int   `json:"queue_capacity"`
	WorkerCount        int   `json:"worker_count"`
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordUpload() { atomic.AddInt64(&m.uploadsAccepted, 1) }
func (m *Metrics) RecordSkip()   { atomic.AddInt64(&m.uploadsSkipped, 1) }

// RecordTranscription counts an attempt, bucketed by outcome.
func (m *Metrics) RecordTranscription(err error) {
	atomic.AddInt64(&m.transcriptions, 1)
	if err != nil {
		atomic.AddInt64(&m.transcriptFails, 1)
	}
}

// RecordSummary counts a lazy summary generation, bucketed by outcome.
func (m *Metrics) RecordSummary(err error) {
	atomic.AddInt64(&m.summaries, 1)
	if err != nil {
		atomic.AddInt64(&m.summaryFails, 1)
	}
}

// UpdateQueue records the current queue gauges.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
	atomic.StoreInt64(&m.workerCount, int64(workers))
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		UploadsAccepted:    atomic.LoadInt64(&m.uploadsAccepted),
		UploadsSkipped:     atomic.LoadInt64(&m.uploadsSkipped),
		Transcriptions:     atomic.LoadInt64(&m.transcriptions),
		TranscriptionFails: atomic.LoadInt64(&m.transcriptFails),
		Summaries:          atomic.LoadInt64(&m.summaries),
		SummaryFails:       atomic.LoadInt64(&m.summaryFails),
		QueueLength:        int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity:      int(atomic.LoadInt64(&m.queueCapacity)),
		WorkerCount:        int(atomic.LoadInt64(&m.workerCount)),
	}
}
