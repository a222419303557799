// Package export renders a meeting view as a downloadable document.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"meetgpt/internal/pipeline"
)

// Supported download formats.
const (
	FormatText = "txt"
	FormatJSON = "json"
	FormatDocx = "docx"
)

const (
	fontName = "Calibri"
	fontSize = 11
)

var (
	reBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBullet = regexp.MustCompile(`^[\-\*]\s+(.+)$`)
)

// Render returns the document bytes plus the filename and content type to
// serve them under. Unknown formats are an error.
func Render(v pipeline.View, format string) (string, string, []byte, error) {
	switch format {
	case FormatText:
		return v.Key + ".txt", "text/plain; charset=utf-8", renderText(v), nil
	case FormatJSON:
		data, err := json.MarshalIndent(exportDoc(v), "", "  ")
		if err != nil {
			return "", "", nil, err
		}
		return v.Key + ".json", "application/json", data, nil
	case FormatDocx:
		data, err := renderDocx(v)
		if err != nil {
			return "", "", nil, err
		}
		return v.Key + ".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data, nil
	default:
		return "", "", nil, fmt.Errorf("unknown export format %q", format)
	}
}

type doc struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Title      string `json:"title,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	AudioName  string `json:"audio_name"`
}

func exportDoc(v pipeline.View) doc {
	return doc{
		Key:        v.Key,
		Label:      v.Label,
		Title:      v.Title,
		Summary:    v.Summary,
		Transcript: v.Transcript,
		AudioName:  v.AudioName,
	}
}

func renderText(v pipeline.View) []byte {
	var b strings.Builder
	b.WriteString(heading(v))
	b.WriteString("\n\n")
	if v.Summary != "" {
		b.WriteString("Summary\n-------\n")
		b.WriteString(strings.TrimSpace(v.Summary))
		b.WriteString("\n\n")
	}
	if v.Transcript != "" {
		b.WriteString("Transcript\n----------\n")
		b.WriteString(strings.TrimSpace(v.Transcript))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func renderDocx(v pipeline.View) ([]byte, error) {
	d, err := godocx.NewDocument()
	if err != nil {
		return nil, err
	}

	addRun(d.AddParagraph(""), heading(v), true, 16)
	if v.Summary != "" {
		addRun(d.AddParagraph(""), "Summary", true, 13)
		for _, line := range strings.Split(v.Summary, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || trimmed == "---" {
				continue
			}
			if m := reBullet.FindStringSubmatch(trimmed); m != nil {
				addRichText(d.AddParagraph(""), "• "+m[1])
				continue
			}
			addRichText(d.AddParagraph(""), trimmed)
		}
	}
	if v.Transcript != "" {
		addRun(d.AddParagraph(""), "Transcript", true, 13)
		for _, line := range strings.Split(v.Transcript, "\n") {
			if t := strings.TrimSpace(line); t != "" {
				addRun(d.AddParagraph(""), t, false, fontSize)
			}
		}
	}

	// godocx only writes to a path, so round-trip through a temp file.
	tmp, err := os.CreateTemp("", "meetgpt-*.docx")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)
	if err := d.SaveTo(path); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Clean(path))
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(stripInline(text)).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}

// addRichText keeps **bold** spans bold and renders everything else plain.
func addRichText(p *docx.Paragraph, text string) {
	parts := reBold.Split(text, -1)
	matches := reBold.FindAllStringSubmatch(text, -1)
	for i, part := range parts {
		if part != "" {
			p.AddText(stripInline(part)).Font(fontName).Size(fontSize).Color("000000")
		}
		if i < len(matches) {
			p.AddText(stripInline(matches[i][1])).Font(fontName).Size(fontSize).Color("000000").Bold(true)
		}
	}
}

func stripInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "`", "")
	return s
}

func heading(v pipeline.View) string {
	if t := strings.TrimSpace(v.Title); t != "" {
		return v.Label + " - " + t
	}
	return v.Label
}
