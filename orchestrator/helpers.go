package orchestrator

import (
	"math"
	"strings"

	"github.com/maastricht-university/talktime/aggregate"
)

func overlap(a0, a1, b0, b1 float64) float64 {
	return math.Max(0, math.Min(a1, b1)-math.Max(a0, b0))
}

// assignSpeakers attributes each utterance to the speaker whose turns cover
// most of it. Utterances that touch no turn get aggregate.UnknownSpeaker.
// Ties go to the speaker seen first in turns.
func assignSpeakers(utts []Utterance, turns []Turn) []aggregate.Segment {
	out := make([]aggregate.Segment, 0, len(utts))
	for _, u := range utts {
		share := map[string]float64{}
		var order []string
		for _, t := range turns {
			d := overlap(u.Start, u.End, t.Start, t.End)
			if d <= 0 || t.Spk == "" {
				continue
			}
			if _, seen := share[t.Spk]; !seen {
				order = append(order, t.Spk)
			}
			share[t.Spk] += d
		}

		spk := aggregate.UnknownSpeaker
		best := 0.0
		for _, s := range order {
			if share[s] > best {
				spk, best = s, share[s]
			}
		}
		out = append(out, aggregate.Segment{
			Start:   u.Start,
			End:     u.End,
			Speaker: spk,
			Text:    strings.TrimSpace(u.Text),
		})
	}
	return out
}

// msRange converts segment bounds to the millisecond slice used for the
// classifier, truncating like the slice indices of the audio library.
func msRange(s aggregate.Segment) (int64, int64) {
	return int64(s.Start * 1000), int64(s.End * 1000)
}
