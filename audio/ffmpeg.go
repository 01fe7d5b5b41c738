package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Normalize converts any input ffmpeg can decode into 16-bit PCM WAV at the
// given rate and channel count, written to out.
func Normalize(ctx context.Context, ffmpeg, in, out string, sampleRate, channels int) error {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	// ffmpeg -y -i input -ac 1 -ar 16000 -c:a pcm_s16le -f wav output
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", in,
		"-ac", strconv.Itoa(channels), "-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
