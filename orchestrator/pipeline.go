package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/talktime/aggregate"
	"github.com/maastricht-university/talktime/audio"
	"github.com/maastricht-university/talktime/clients"
	cfg "github.com/maastricht-university/talktime/config"
	"github.com/maastricht-university/talktime/metrics"
)

type Pipeline struct {
	cfg       *cfg.Root
	speech    Transcriber
	voice     VoiceClassifier
	normalize func(ctx context.Context, in, out string) error
	log       logrus.FieldLogger
}

type Option func(*Pipeline)

func WithTranscriber(t Transcriber) Option         { return func(p *Pipeline) { p.speech = t } }
func WithVoiceClassifier(v VoiceClassifier) Option { return func(p *Pipeline) { p.voice = v } }

// WithNormalizer replaces the ffmpeg conversion of non-WAV uploads.
func WithNormalizer(fn func(ctx context.Context, in, out string) error) Option {
	return func(p *Pipeline) { p.normalize = fn }
}

func NewPipeline(c *cfg.Root, log logrus.FieldLogger, opts ...Option) *Pipeline {
	h := clients.NewHTTP()
	p := &Pipeline{
		cfg:    c,
		speech: NewSpeechPipeline(h, c, log),
		voice:  serviceClassifier{classify: h.Classify, url: c.Services.Classifier.URL},
		normalize: func(ctx context.Context, in, out string) error {
			return audio.Normalize(ctx, c.Audio.FFmpeg, in, out, c.Audio.SampleRate, c.Audio.Channels)
		},
		log: log,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the whole job for one uploaded file inside ws.
func (p *Pipeline) Process(ctx context.Context, ws *Workspace, uploadPath string) (aggregate.Report, error) {
	log := p.log.WithField("request_id", ws.ID)

	wav, err := p.prepare(ctx, ws, uploadPath)
	if err != nil {
		return aggregate.Report{}, err
	}
	defer wav.Close()
	log.WithFields(logrus.Fields{
		"duration":    wav.Duration().String(),
		"sample_rate": wav.SampleRate,
		"channels":    wav.Channels,
	}).Debug("audio ready")

	segs, err := p.speech.Transcribe(ctx, wav.Path())
	if err != nil {
		if !errors.Is(err, ErrTranscription) {
			err = fmt.Errorf("%w: %w", ErrTranscription, err)
		}
		return aggregate.Report{}, err
	}

	obs := []aggregate.Observer{logObserver{log: log}, metricsObserver{}}
	var tf *transcriptFile
	if p.cfg.Paths.KeepArtifacts {
		tf, err = newTranscriptFile(ws)
		if err != nil {
			return aggregate.Report{}, err
		}
		defer tf.Close() // no-op after the explicit Close below
		cf, err := newChunkFiles(ws, wav.WAV)
		if err != nil {
			return aggregate.Report{}, err
		}
		obs = append(obs, tf, cf)
	}

	cl := &sliceClassifier{wav: wav.WAV, voice: p.voice, timeout: p.cfg.Services.Classifier.Timeout}
	rep, err := aggregate.Aggregate(ctx, segs, cl, obs...)
	if err != nil {
		return aggregate.Report{}, err
	}
	if tf != nil {
		if err := tf.Close(); err != nil {
			return aggregate.Report{}, fmt.Errorf("write transcript: %w", err)
		}
	}

	fields := logrus.Fields{
		"chunks":         len(segs),
		"female_chunks":  rep.FemaleChunks,
		"female_seconds": fmt.Sprintf("%.2f", rep.FemaleSeconds),
		"male_chunks":    rep.MaleChunks,
		"male_seconds":   fmt.Sprintf("%.2f", rep.MaleSeconds),
		"female_ratio":   fmt.Sprintf("%.2f", rep.FemaleRatio),
		"male_ratio":     fmt.Sprintf("%.2f", rep.MaleRatio),
	}
	if rep.Degenerate {
		log.WithFields(fields).Warn("no classified speech, ratios reported as 0")
	} else {
		log.WithFields(fields).Info("aggregation done")
	}

	if p.cfg.Paths.KeepArtifacts {
		path, err := persist(ws, uploadPath, rep)
		if err != nil {
			return aggregate.Report{}, fmt.Errorf("write report: %w", err)
		}
		log.WithField("path", path).Debug("report written")
	}
	return rep, nil
}

// prepare returns the upload as an open PCM WAV, converting it with ffmpeg
// when it is not one already.
func (p *Pipeline) prepare(ctx context.Context, ws *Workspace, uploadPath string) (*sourceWAV, error) {
	if w, err := audio.Open(uploadPath); err == nil {
		return &sourceWAV{WAV: w, path: uploadPath}, nil
	}

	out := filepath.Join(ws.Dir, "audio_16k.wav")
	err := timed(ctx, "normalize", 0, func(ctx context.Context) error {
		return p.normalize(ctx, uploadPath, out)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudio, err)
	}
	w, err := audio.Open(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudio, err)
	}
	return &sourceWAV{WAV: w, path: out}, nil
}

type sourceWAV struct {
	*audio.WAV
	path string
}

func (s *sourceWAV) Path() string { return s.path }

type logObserver struct{ log logrus.FieldLogger }

func (o logObserver) OnSegment(i int, seg aggregate.Segment, d aggregate.Decision, ok bool, line string) error {
	entry := o.log.WithFields(logrus.Fields{"chunk": i, "speaker": seg.Speaker})
	if !ok {
		entry.Debug("zero-length segment, not classified")
		return nil
	}
	entry.WithFields(logrus.Fields{
		"label":  d.Label(),
		"male":   fmt.Sprintf("%.2f%%", d.MaleProbability*100),
		"female": fmt.Sprintf("%.2f%%", d.FemaleProbability()*100),
	}).Debug(line)
	return nil
}

type metricsObserver struct{}

func (metricsObserver) OnSegment(_ int, seg aggregate.Segment, d aggregate.Decision, ok bool, _ string) error {
	if !ok {
		metrics.RecordSegment(aggregate.LabelUnknown, 0)
		return nil
	}
	metrics.RecordSegment(d.Label(), seg.Duration())
	return nil
}
