package aggregate

import "context"

const (
	LabelMale    = "male"
	LabelFemale  = "female"
	LabelUnknown = "unknown"

	UnknownSpeaker = "UNKNOWN"
)

// Segment is one diarized, transcribed span of the source audio.
type Segment struct {
	Start   float64 // sec
	End     float64 // sec
	Speaker string  // "SPEAKER_00"... or UnknownSpeaker
	Text    string
}

func (s Segment) Duration() float64 { return s.End - s.Start }

// Decision is the classifier verdict for a single segment.
type Decision struct {
	MaleProbability float64
}

func (d Decision) FemaleProbability() float64 { return 1 - d.MaleProbability }

// Label favours male only on a strict majority; an exact 0.5 is female.
func (d Decision) Label() string {
	if d.MaleProbability > d.FemaleProbability() {
		return LabelMale
	}
	return LabelFemale
}

// Classifier decides the gender of the voice in segment i.
type Classifier interface {
	Classify(ctx context.Context, i int, seg Segment) (Decision, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, i int, seg Segment) (Decision, error)

func (f ClassifierFunc) Classify(ctx context.Context, i int, seg Segment) (Decision, error) {
	return f(ctx, i, seg)
}

// Observer is notified once per segment, in order, after its line is built.
// Skipped (zero-length) segments are reported with ok=false.
type Observer interface {
	OnSegment(i int, seg Segment, d Decision, ok bool, line string) error
}

type Report struct {
	FemaleSeconds float64
	MaleSeconds   float64
	TotalSeconds  float64
	FemaleRatio   float64
	MaleRatio     float64
	FemaleChunks  int
	MaleChunks    int
	Transcript    []string
	// Degenerate is set when no speech time was classified; ratios are then 0.
	Degenerate bool
}
