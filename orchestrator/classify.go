package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/maastricht-university/talktime/aggregate"
	"github.com/maastricht-university/talktime/audio"
)

// sliceClassifier cuts each segment out of the source WAV and asks the voice
// classifier for P(male).
type sliceClassifier struct {
	wav     *audio.WAV
	voice   VoiceClassifier
	timeout time.Duration
}

func (c *sliceClassifier) Classify(ctx context.Context, i int, seg aggregate.Segment) (aggregate.Decision, error) {
	from, to := msRange(seg)
	chunk, err := c.wav.Slice(from, to)
	if err != nil {
		return aggregate.Decision{}, fmt.Errorf("%w: slice %d-%dms: %w", ErrClassification, from, to, err)
	}

	var p float64
	err = timed(ctx, "classify", c.timeout, func(ctx context.Context) (err error) {
		p, err = c.voice.Classify(ctx, chunkName(i), chunk)
		return err
	})
	if err != nil {
		return aggregate.Decision{}, fmt.Errorf("%w: %w", ErrClassification, err)
	}
	return aggregate.Decision{MaleProbability: p}, nil
}

func chunkName(i int) string { return fmt.Sprintf("chunk_%d.wav", i) }

// serviceClassifier binds the HTTP classifier to its base URL.
type serviceClassifier struct {
	classify func(ctx context.Context, url, filename string, wav []byte) (float64, error)
	url      string
}

func (s serviceClassifier) Classify(ctx context.Context, filename string, wav []byte) (float64, error) {
	return s.classify(ctx, s.url, filename, wav)
}
