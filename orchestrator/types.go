package orchestrator

import (
	"context"
	"errors"

	"github.com/maastricht-university/talktime/aggregate"
)

// Stage failures. Callers match with errors.Is; the wrapped error carries
// the detail for logs.
var (
	ErrAudio          = errors.New("audio preparation failed")
	ErrTranscription  = errors.New("transcription failed")
	ErrClassification = errors.New("classification failed")
)

// Transcriber turns an audio file into ordered, speaker-attributed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) ([]aggregate.Segment, error)
}

// VoiceClassifier scores one WAV slice; the result is P(male).
type VoiceClassifier interface {
	Classify(ctx context.Context, filename string, wav []byte) (float64, error)
}

// Utterance is an ASR segment before speaker attribution.
type Utterance struct {
	Start float64 // sec
	End   float64 // sec
	Text  string
}

// Turn is one diarization span.
type Turn struct {
	Start float64
	End   float64
	Spk   string // "SPEAKER_00"...
}
