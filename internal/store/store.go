// Package store owns the root directory of meeting folders. Each meeting is a
// folder named after its creation timestamp; every artifact (audio, transcript,
// title, summary) is a flat file inside that folder.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field names a text artifact file inside a meeting folder.
type Field string

const (
	FieldTranscript Field = "transcricao.txt"
	FieldTitle      Field = "titulo.txt"
	FieldSummary    Field = "resumo.txt"
)

// keyLayout renders a time as a lexicographically sortable meeting key.
const keyLayout = "2006_01_02_15_04_05"

var (
	// ErrMalformedKey reports a folder under the root whose name is not six
	// underscore-separated numeric fields.
	ErrMalformedKey = errors.New("malformed meeting key")
	// ErrAudioMissing reports a meeting folder with no audio file.
	ErrAudioMissing = errors.New("meeting audio file missing")
)

// Store manages the meetings root directory.
type Store struct {
	root string
}

// Meeting is one row of the meeting listing.
type Meeting struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Open ensures the root directory exists and returns a store over it.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create meetings root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the meetings root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the folder path for a meeting key.
func (s *Store) Dir(key string) string {
	return filepath.Join(s.root, key)
}

// CreateMeeting generates a timestamp key for now and creates its folder if
// absent. The key is immutable once created; calling again within the same
// second lands on the same folder.
func (s *Store) CreateMeeting(now time.Time) (string, error) {
	key := now.Format(keyLayout)
	if err := os.MkdirAll(s.Dir(key), 0o755); err != nil {
		return "", fmt.Errorf("create meeting folder: %w", err)
	}
	return key, nil
}

// ReadText returns the contents of a field file, or the empty string when the
// file does not exist. It never fails: absence is a valid state meaning "not
// yet computed".
func (s *Store) ReadText(key string, field Field) string {
	data, err := os.ReadFile(filepath.Join(s.Dir(key), string(field)))
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteText overwrites a field file. Atomicity is not guaranteed; a crash
// mid-write can leave a partial file.
func (s *Store) WriteText(key string, field Field, content string) error {
	if err := os.WriteFile(filepath.Join(s.Dir(key), string(field)), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return nil
}

// HasField reports whether a field file exists. Existence, not content, is
// what decides whether a write-once field needs computing: a present-but-empty
// file still counts as computed.
func (s *Store) HasField(key string, field Field) bool {
	_, err := os.Stat(filepath.Join(s.Dir(key), string(field)))
	return err == nil
}

// SaveAudio persists the raw uploaded bytes under the original filename and
// returns the full path.
func (s *Store) SaveAudio(key, filename string, data []byte) (string, error) {
	path := filepath.Join(s.Dir(key), filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}

// AudioFile locates the meeting's audio file (the one file that is not a
// known text field) and returns its name and bytes. A meeting with no audio
// file yields ErrAudioMissing.
func (s *Store) AudioFile(key string) (string, []byte, error) {
	entries, err := os.ReadDir(s.Dir(key))
	if err != nil {
		return "", nil, fmt.Errorf("read meeting folder: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || isFieldFile(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir(key), e.Name()))
		if err != nil {
			return "", nil, fmt.Errorf("read audio: %w", err)
		}
		return e.Name(), data, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrAudioMissing, key)
}

func isFieldFile(name string) bool {
	switch Field(name) {
	case FieldTranscript, FieldTitle, FieldSummary:
		return true
	}
	return false
}

// List enumerates meeting folders in descending key order, newest first. The
// display label is DD/MM/YYYY HH:MM:SS, with " - <title>" appended when a
// non-empty title file exists. Any folder whose name is not a valid key
// aborts the listing.
func (s *Store) List() ([]Meeting, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read meetings root: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	meetings := make([]Meeting, 0, len(keys))
	for _, key := range keys {
		label, err := DisplayLabel(key)
		if err != nil {
			return nil, err
		}
		if title := strings.TrimSpace(s.ReadText(key, FieldTitle)); title != "" {
			label += " - " + title
		}
		meetings = append(meetings, Meeting{Key: key, Label: label})
	}
	return meetings, nil
}

// DisplayLabel renders a meeting key as DD/MM/YYYY HH:MM:SS. The key must
// split into exactly six underscore-separated numeric fields.
func DisplayLabel(key string) (string, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 6 {
		return "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
	}
	year, month, day := parts[0], parts[1], parts[2]
	hour, minute, second := parts[3], parts[4], parts[5]
	return fmt.Sprintf("%s/%s/%s %s:%s:%s", day, month, year, hour, minute, second), nil
}
