package clients

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// --- Diarization (/diarize) ---
type SpkSeg struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}
type DiarResp struct {
	Segments    []SpkSeg `json:"segments"`
	NumSpeakers int      `json:"num_speakers"`
}

// Diarize returns speaker turns for audioPath. token is the model access
// token forwarded as a bearer credential.
func (h *HTTP) Diarize(ctx context.Context, url, token, audioPath string) (*DiarResp, error) {
	fd, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", audioPath, err)
	}
	defer fd.Close()

	var out DiarResp
	err = h.postFile(ctx, "diarize", url+"/diarize", upload{
		field:    "file",
		filename: filepath.Base(audioPath),
		body:     fd,
		bearer:   token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
