package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/talktime/aggregate"
	"github.com/maastricht-university/talktime/audio"
	cfg "github.com/maastricht-university/talktime/config"
)

type fakeSpeech struct {
	segs []aggregate.Segment
	err  error
	path string
}

func (f *fakeSpeech) Transcribe(_ context.Context, wavPath string) ([]aggregate.Segment, error) {
	f.path = wavPath
	return f.segs, f.err
}

type fakeVoice struct {
	probs []float64
	err   error
	names []string
	sizes []int
}

func (f *fakeVoice) Classify(_ context.Context, name string, wav []byte) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.names = append(f.names, name)
	f.sizes = append(f.sizes, len(wav))
	return f.probs[len(f.names)-1], nil
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(keep bool) *cfg.Root {
	c := &cfg.Root{Token: "t"}
	c.Paths.KeepArtifacts = keep
	c.Audio.SampleRate = 16000
	c.Audio.Channels = 1
	return c
}

// fiveSeconds writes 5s of 16 kHz mono silence into the workspace.
func fiveSeconds(t *testing.T, ws *Workspace) string {
	t.Helper()
	path := ws.Path("talk.wav")
	require.NoError(t, os.WriteFile(path, audio.EncodePCM16(make([]int16, 5*16000), 16000, 1), 0o644))
	return path
}

func twoSpeakers() []aggregate.Segment {
	return []aggregate.Segment{
		{Start: 0, End: 2, Speaker: "A", Text: "hello"},
		{Start: 2, End: 5, Speaker: "B", Text: "world"},
	}
}

func TestProcessAggregatesClassifiedSlices(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "req-1")
	require.NoError(t, err)
	upload := fiveSeconds(t, ws)

	speech := &fakeSpeech{segs: twoSpeakers()}
	voice := &fakeVoice{probs: []float64{0.9, 0.2}}
	p := NewPipeline(testConfig(false), quietLog(), WithTranscriber(speech), WithVoiceClassifier(voice))

	rep, err := p.Process(context.Background(), ws, upload)
	require.NoError(t, err)
	require.Equal(t, upload, speech.path)
	require.InDelta(t, 2.0, rep.MaleSeconds, 1e-9)
	require.InDelta(t, 3.0, rep.FemaleSeconds, 1e-9)
	require.InDelta(t, 0.4, rep.MaleRatio, 1e-9)
	require.InDelta(t, 0.6, rep.FemaleRatio, 1e-9)
	require.Equal(t, []string{
		"[0:00:00-0:00:02] (A: male): hello",
		"[0:00:02-0:00:05] (B: female): world",
	}, rep.Transcript)

	require.Equal(t, []string{"chunk_0.wav", "chunk_1.wav"}, voice.names)
	// 44 byte header + 2 bytes per sample
	require.Equal(t, []int{44 + 2*2*16000, 44 + 2*3*16000}, voice.sizes)

	_, err = os.Stat(filepath.Join(ws.Dir, "transcript.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessKeepsArtifacts(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "")
	require.NoError(t, err)
	require.NotEmpty(t, ws.ID)
	upload := fiveSeconds(t, ws)

	p := NewPipeline(testConfig(true), quietLog(),
		WithTranscriber(&fakeSpeech{segs: twoSpeakers()}),
		WithVoiceClassifier(&fakeVoice{probs: []float64{0.1, 0.6}}))

	rep, err := p.Process(context.Background(), ws, upload)
	require.NoError(t, err)

	txt, err := os.ReadFile(filepath.Join(ws.Dir, "transcript.txt"))
	require.NoError(t, err)
	require.Equal(t, strings.Join(rep.Transcript, "\n")+"\n", string(txt))

	chunk, err := audio.Open(filepath.Join(ws.Dir, "chunks", "chunk_1.wav"))
	require.NoError(t, err)
	defer chunk.Close()
	require.EqualValues(t, 3*16000, chunk.Frames())

	b, err := os.ReadFile(filepath.Join(ws.Dir, "report.json"))
	require.NoError(t, err)
	require.Contains(t, string(b), `"request_id": "`+ws.ID+`"`)
	require.Contains(t, string(b), `"male_chunks": 1`)
}

func TestProcessReportsTranscriptWriteFailure(t *testing.T) {
	t.Parallel()
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}

	ws, err := NewWorkspace(t.TempDir(), "req")
	require.NoError(t, err)
	require.NoError(t, os.Symlink("/dev/full", filepath.Join(ws.Dir, "transcript.txt")))

	p := NewPipeline(testConfig(true), quietLog(),
		WithTranscriber(&fakeSpeech{segs: twoSpeakers()}),
		WithVoiceClassifier(&fakeVoice{probs: []float64{0.1, 0.6}}))

	_, err = p.Process(context.Background(), ws, fiveSeconds(t, ws))
	require.ErrorContains(t, err, "write transcript")
}

func TestProcessClassifierFailure(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "req")
	require.NoError(t, err)
	boom := errors.New("model unavailable")

	p := NewPipeline(testConfig(false), quietLog(),
		WithTranscriber(&fakeSpeech{segs: twoSpeakers()}),
		WithVoiceClassifier(&fakeVoice{err: boom}))

	_, err = p.Process(context.Background(), ws, fiveSeconds(t, ws))
	require.ErrorIs(t, err, ErrClassification)
	require.ErrorIs(t, err, boom)
}

func TestProcessSegmentOutsideAudio(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "req")
	require.NoError(t, err)

	segs := []aggregate.Segment{{Start: 7, End: 9, Speaker: "A", Text: "late"}}
	p := NewPipeline(testConfig(false), quietLog(),
		WithTranscriber(&fakeSpeech{segs: segs}),
		WithVoiceClassifier(&fakeVoice{probs: []float64{0.5}}))

	_, err = p.Process(context.Background(), ws, fiveSeconds(t, ws))
	require.ErrorIs(t, err, ErrClassification)
	require.ErrorIs(t, err, audio.ErrEmptySlice)
}

func TestProcessTranscriptionFailure(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "req")
	require.NoError(t, err)

	p := NewPipeline(testConfig(false), quietLog(),
		WithTranscriber(&fakeSpeech{err: errors.New("asr down")}),
		WithVoiceClassifier(&fakeVoice{}))

	_, err = p.Process(context.Background(), ws, fiveSeconds(t, ws))
	require.ErrorIs(t, err, ErrTranscription)
	require.ErrorContains(t, err, "asr down")
}

func TestProcessNormalizesNonWAV(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "req")
	require.NoError(t, err)
	upload := ws.Path("talk.mp3")
	require.NoError(t, os.WriteFile(upload, []byte("ID3 not really"), 0o644))

	var gotIn string
	norm := func(_ context.Context, in, out string) error {
		gotIn = in
		return os.WriteFile(out, audio.EncodePCM16(make([]int16, 16000), 16000, 1), 0o644)
	}
	speech := &fakeSpeech{}
	p := NewPipeline(testConfig(false), quietLog(),
		WithTranscriber(speech), WithVoiceClassifier(&fakeVoice{}), WithNormalizer(norm))

	rep, err := p.Process(context.Background(), ws, upload)
	require.NoError(t, err)
	require.Equal(t, upload, gotIn)
	require.Equal(t, filepath.Join(ws.Dir, "audio_16k.wav"), speech.path)
	require.True(t, rep.Degenerate)
	require.Empty(t, rep.Transcript)
}

func TestProcessNormalizeFailure(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "req")
	require.NoError(t, err)
	upload := ws.Path("talk.ogg")
	require.NoError(t, os.WriteFile(upload, []byte("OggS"), 0o644))

	p := NewPipeline(testConfig(false), quietLog(),
		WithTranscriber(&fakeSpeech{}), WithVoiceClassifier(&fakeVoice{}),
		WithNormalizer(func(context.Context, string, string) error { return errors.New("codec") }))

	_, err = p.Process(context.Background(), ws, upload)
	require.ErrorIs(t, err, ErrAudio)
}

func TestWorkspacePathStripsDirectories(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), "abc")
	require.NoError(t, err)

	require.Equal(t, filepath.Join(ws.Dir, "passwd"), ws.Path("../../etc/passwd"))
	require.Equal(t, filepath.Join(ws.Dir, "evil.wav"), ws.Path(`..\..\evil.wav`))
	require.Equal(t, filepath.Join(ws.Dir, "upload"), ws.Path(".."))
	require.Equal(t, filepath.Join(ws.Dir, "upload"), ws.Path(""))

	require.NoError(t, ws.Remove())
	_, err = os.Stat(ws.Dir)
	require.ErrorIs(t, err, os.ErrNotExist)
}
