// Package aggregate folds classified segments into a gender-labelled
// transcript and speaking-time report. It performs no I/O of its own; model
// calls happen behind the Classifier passed in by the caller.
package aggregate

import (
	"context"
	"fmt"
	"strings"
)

// Aggregate classifies each segment in order and accumulates speaking time
// per label. Classifier errors are returned as-is (wrapped with the segment
// index) and abort the fold.
func Aggregate(ctx context.Context, segs []Segment, c Classifier, obs ...Observer) (Report, error) {
	var rep Report
	rep.Transcript = make([]string, 0, len(segs))

	for i, s := range segs {
		var (
			d     Decision
			label = LabelUnknown
			ok    bool
		)
		if dur := s.Duration(); dur > 0 {
			var err error
			d, err = c.Classify(ctx, i, s)
			if err != nil {
				return Report{}, fmt.Errorf("segment %d: %w", i, err)
			}
			ok = true
			label = d.Label()
			if label == LabelMale {
				rep.MaleChunks++
				rep.MaleSeconds += dur
			} else {
				rep.FemaleChunks++
				rep.FemaleSeconds += dur
			}
		}

		line := FormatLine(s, label)
		rep.Transcript = append(rep.Transcript, line)
		for _, o := range obs {
			if err := o.OnSegment(i, s, d, ok, line); err != nil {
				return Report{}, fmt.Errorf("segment %d observer: %w", i, err)
			}
		}
	}

	rep.TotalSeconds = rep.FemaleSeconds + rep.MaleSeconds
	if rep.TotalSeconds > 0 {
		rep.FemaleRatio = rep.FemaleSeconds / rep.TotalSeconds
		rep.MaleRatio = rep.MaleSeconds / rep.TotalSeconds
	} else {
		rep.Degenerate = true
	}
	return rep, nil
}

// FormatLine renders "[0:00:02-0:00:05] (SPEAKER_00: male): text".
func FormatLine(s Segment, label string) string {
	spk := s.Speaker
	if spk == "" {
		spk = UnknownSpeaker
	}
	return fmt.Sprintf("[%s-%s] (%s: %s): %s",
		Clock(s.Start), Clock(s.End), spk, label, strings.TrimSpace(s.Text))
}

// Clock truncates sec to whole seconds and prints it as H:MM:SS, prefixed
// with "N day(s), " past 24 hours.
func Clock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	n := int64(sec)
	days := n / 86400
	n %= 86400
	hms := fmt.Sprintf("%d:%02d:%02d", n/3600, n%3600/60, n%60)
	switch {
	case days == 1:
		return "1 day, " + hms
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, hms)
	}
	return hms
}
