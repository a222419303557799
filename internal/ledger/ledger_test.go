package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ingests.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func record(t *testing.T, l *Ledger, id, filename, hash string, at time.Time) {
	t.Helper()
	err := l.Record(context.Background(), Ingest{
		ID:          id,
		Filename:    filename,
		Source:      "upload",
		SizeBytes:   5,
		ContentHash: hash,
		Status:      StatusQueued,
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestRecordAndFinish(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	record(t, l, "a1", "standup.mp3", "h1", now)
	key := "2024_03_07_09_05_01"
	if err := l.Finish(ctx, "a1", StatusDone, &key, nil, now.Add(time.Second)); err != nil {
		t.Fatalf("finish: %v", err)
	}

	ingests, err := l.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ingests) != 1 {
		t.Fatalf("expected 1 ingest, got %d", len(ingests))
	}
	in := ingests[0]
	if in.Status != StatusDone {
		t.Fatalf("expected done, got %s", in.Status)
	}
	if in.MeetingKey == nil || *in.MeetingKey != key {
		t.Fatalf("expected meeting key %q, got %v", key, in.MeetingKey)
	}
	if in.FinishedAt == nil {
		t.Fatalf("expected finished_at set")
	}
}

func TestFinishWithError(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	record(t, l, "b1", "retro.wav", "h2", now)
	msg := "transcription failed: 503"
	if err := l.Finish(ctx, "b1", StatusError, nil, &msg, now); err != nil {
		t.Fatalf("finish: %v", err)
	}
	ingests, err := l.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if ingests[0].LastError == nil || *ingests[0].LastError != msg {
		t.Fatalf("expected last_error %q, got %v", msg, ingests[0].LastError)
	}
}

func TestFindByHashOnlyMatchesDone(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	record(t, l, "c1", "a.mp3", "same", now)
	if dup, err := l.FindByHash(ctx, "same"); err != nil || dup != nil {
		t.Fatalf("queued ingest should not count as duplicate, got %v err=%v", dup, err)
	}
	if err := l.Finish(ctx, "c1", StatusDone, nil, nil, now); err != nil {
		t.Fatalf("finish: %v", err)
	}
	dup, err := l.FindByHash(ctx, "same")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if dup == nil || *dup != "c1" {
		t.Fatalf("expected duplicate of c1, got %v", dup)
	}
	if miss, err := l.FindByHash(ctx, "other"); err != nil || miss != nil {
		t.Fatalf("expected no match for other hash, got %v err=%v", miss, err)
	}
}

func TestListNewestFirst(t *testing.T) {
	l := openTestLedger(t)
	base := time.Now().UTC().Truncate(time.Second)
	record(t, l, "old", "a.mp3", "h1", base)
	record(t, l, "new", "b.mp3", "h2", base.Add(time.Minute))

	ingests, err := l.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ingests) != 2 || ingests[0].ID != "new" || ingests[1].ID != "old" {
		t.Fatalf("expected newest first, got %+v", ingests)
	}
}

func TestHealth(t *testing.T) {
	l := openTestLedger(t)
	if err := l.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
