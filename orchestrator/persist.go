package orchestrator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maastricht-university/talktime/aggregate"
	"github.com/maastricht-university/talktime/audio"
)

// Workspace is the per-request directory holding the upload, the normalized
// audio and any kept artifacts. Concurrent requests never share one.
type Workspace struct {
	ID  string
	Dir string
}

// NewWorkspace creates <root>/<id>. An empty id gets a fresh uuid.
func NewWorkspace(root, id string) (*Workspace, error) {
	if id == "" {
		id = uuid.NewString()
	}
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Workspace{ID: id, Dir: dir}, nil
}

// Path returns a location inside the workspace for a client supplied name.
// Directory components are stripped.
func (w *Workspace) Path(name string) string {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if base == "/" || base == "." || base == ".." {
		base = "upload"
	}
	return filepath.Join(w.Dir, base)
}

func (w *Workspace) Remove() error { return os.RemoveAll(w.Dir) }

// ReportBundle is the JSON artifact written next to the transcript.
type ReportBundle struct {
	RequestID   string    `json:"request_id"`
	AudioPath   string    `json:"audio_path"`
	GeneratedAt time.Time `json:"generated_at"`

	FemaleSeconds float64  `json:"female_seconds"`
	MaleSeconds   float64  `json:"male_seconds"`
	TotalSeconds  float64  `json:"total_seconds"`
	FemaleRatio   float64  `json:"female_ratio"`
	MaleRatio     float64  `json:"male_ratio"`
	FemaleChunks  int      `json:"female_chunks"`
	MaleChunks    int      `json:"male_chunks"`
	Transcript    []string `json:"transcript"`
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func persist(ws *Workspace, audioPath string, rep aggregate.Report) (string, error) {
	path := filepath.Join(ws.Dir, "report.json")
	err := writeJSON(path, ReportBundle{
		RequestID:     ws.ID,
		AudioPath:     audioPath,
		GeneratedAt:   time.Now(),
		FemaleSeconds: rep.FemaleSeconds,
		MaleSeconds:   rep.MaleSeconds,
		TotalSeconds:  rep.TotalSeconds,
		FemaleRatio:   rep.FemaleRatio,
		MaleRatio:     rep.MaleRatio,
		FemaleChunks:  rep.FemaleChunks,
		MaleChunks:    rep.MaleChunks,
		Transcript:    rep.Transcript,
	})
	return path, err
}

// transcriptFile appends each transcript line to transcript.txt. Write
// errors may only surface on Close.
type transcriptFile struct {
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func newTranscriptFile(ws *Workspace) (*transcriptFile, error) {
	f, err := os.Create(filepath.Join(ws.Dir, "transcript.txt"))
	if err != nil {
		return nil, err
	}
	return &transcriptFile{f: f, w: bufio.NewWriter(f)}, nil
}

func (t *transcriptFile) OnSegment(_ int, _ aggregate.Segment, _ aggregate.Decision, _ bool, line string) error {
	_, err := fmt.Fprintln(t.w, line)
	return err
}

func (t *transcriptFile) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err := t.w.Flush()
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// chunkFiles saves each classified slice as chunks/chunk_<i>.wav.
type chunkFiles struct {
	wav *audio.WAV
	dir string
}

func newChunkFiles(ws *Workspace, wav *audio.WAV) (*chunkFiles, error) {
	dir := filepath.Join(ws.Dir, "chunks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &chunkFiles{wav: wav, dir: dir}, nil
}

func (c *chunkFiles) OnSegment(i int, seg aggregate.Segment, _ aggregate.Decision, ok bool, _ string) error {
	if !ok {
		return nil
	}
	from, to := msRange(seg)
	return c.wav.WriteSlice(filepath.Join(c.dir, chunkName(i)), from, to)
}
