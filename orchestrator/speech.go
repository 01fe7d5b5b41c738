package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/talktime/aggregate"
	"github.com/maastricht-university/talktime/clients"
	cfg "github.com/maastricht-university/talktime/config"
	"github.com/maastricht-university/talktime/metrics"
)

// SpeechPipeline runs ASR and diarization against the model services and
// stitches the two into speaker-attributed segments.
type SpeechPipeline struct {
	http     *clients.HTTP
	services cfg.Services
	opts     clients.ASROptions
	token    string
	log      logrus.FieldLogger
}

func NewSpeechPipeline(h *clients.HTTP, c *cfg.Root, log logrus.FieldLogger) *SpeechPipeline {
	return &SpeechPipeline{
		http:     h,
		services: c.Services,
		opts: clients.ASROptions{
			Model:       c.Pipeline.Model,
			Device:      c.Pipeline.Device,
			BatchSize:   c.Pipeline.BatchSize,
			ComputeType: c.Pipeline.ComputeType,
			Language:    c.Pipeline.Language,
			Align:       c.Pipeline.Align,
		},
		token: c.Token,
		log:   log,
	}
}

func (s *SpeechPipeline) Transcribe(ctx context.Context, wavPath string) ([]aggregate.Segment, error) {
	var asr *clients.ASRResp
	err := timed(ctx, "asr", s.services.ASR.Timeout, func(ctx context.Context) (err error) {
		asr, err = s.http.ASR(ctx, s.services.ASR.URL, wavPath, s.opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	var diar *clients.DiarResp
	err = timed(ctx, "diarize", s.services.Diarization.Timeout, func(ctx context.Context) (err error) {
		diar, err = s.http.Diarize(ctx, s.services.Diarization.URL, s.token, wavPath)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: diarization: %w", ErrTranscription, err)
	}

	utts := make([]Utterance, 0, len(asr.Segments))
	for _, seg := range asr.Segments {
		utts = append(utts, Utterance{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	turns := make([]Turn, 0, len(diar.Segments))
	for _, seg := range diar.Segments {
		turns = append(turns, Turn{Start: seg.Start, End: seg.End, Spk: seg.Speaker})
	}

	s.log.WithFields(logrus.Fields{
		"language": asr.Language,
		"segments": len(utts),
		"turns":    len(turns),
		"speakers": diar.NumSpeakers,
	}).Info("speech pipeline done")

	return assignSpeakers(utts, turns), nil
}

// timed runs fn under an optional stage deadline and records its duration.
func timed(ctx context.Context, stage string, limit time.Duration, fn func(context.Context) error) error {
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}
	t0 := time.Now()
	err := fn(ctx)
	metrics.RecordStage(stage, time.Since(t0).Seconds(), err)
	return err
}
