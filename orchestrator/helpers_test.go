package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/talktime/aggregate"
)

func TestAssignSpeakersByLargestOverlap(t *testing.T) {
	t.Parallel()

	utts := []Utterance{
		{Start: 0, End: 4, Text: " hello there "},
		{Start: 4, End: 6, Text: "hi"},
		{Start: 10, End: 11, Text: "anyone?"},
	}
	turns := []Turn{
		{Start: 0, End: 1, Spk: "SPEAKER_01"},
		{Start: 1, End: 4.5, Spk: "SPEAKER_00"},
		{Start: 4.5, End: 6, Spk: "SPEAKER_01"},
	}

	segs := assignSpeakers(utts, turns)
	require.Equal(t, []aggregate.Segment{
		{Start: 0, End: 4, Speaker: "SPEAKER_00", Text: "hello there"},
		{Start: 4, End: 6, Speaker: "SPEAKER_01", Text: "hi"},
		{Start: 10, End: 11, Speaker: aggregate.UnknownSpeaker, Text: "anyone?"},
	}, segs)
}

func TestAssignSpeakersSumsSplitTurns(t *testing.T) {
	t.Parallel()

	// A speaks twice inside the utterance (1.2s total), B once (1.0s).
	utts := []Utterance{{Start: 0, End: 3}}
	turns := []Turn{
		{Start: 0, End: 0.6, Spk: "A"},
		{Start: 0.6, End: 1.6, Spk: "B"},
		{Start: 1.6, End: 2.2, Spk: "A"},
	}
	require.Equal(t, "A", assignSpeakers(utts, turns)[0].Speaker)
}

func TestAssignSpeakersTieGoesToFirstSeen(t *testing.T) {
	t.Parallel()

	utts := []Utterance{{Start: 0, End: 2}}
	turns := []Turn{{Start: 1, End: 2, Spk: "B"}, {Start: 0, End: 1, Spk: "A"}}
	require.Equal(t, "B", assignSpeakers(utts, turns)[0].Speaker)
}

func TestAssignSpeakersNoTurns(t *testing.T) {
	t.Parallel()

	segs := assignSpeakers([]Utterance{{Start: 0, End: 1, Text: "x"}}, nil)
	require.Equal(t, aggregate.UnknownSpeaker, segs[0].Speaker)
	require.Empty(t, assignSpeakers(nil, nil))
}

func TestMsRangeTruncates(t *testing.T) {
	t.Parallel()

	from, to := msRange(aggregate.Segment{Start: 1.2345, End: 2.9999})
	require.EqualValues(t, 1234, from)
	require.EqualValues(t, 2999, to)
}
