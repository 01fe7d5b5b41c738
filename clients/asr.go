package clients

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

// ASROptions selects the speech model on the service side.
type ASROptions struct {
	Model       string
	Device      string
	BatchSize   int
	ComputeType string
	Language    string
	Align       bool
}

func (o ASROptions) fields() map[string]string {
	f := map[string]string{
		"model":        o.Model,
		"device":       o.Device,
		"batch_size":   strconv.Itoa(o.BatchSize),
		"compute_type": o.ComputeType,
		"align":        strconv.FormatBool(o.Align),
	}
	if o.Language != "" {
		f["language"] = o.Language
	}
	return f
}

// ASR uploads wavPath to <url>/transcribe and returns aligned segments.
func (h *HTTP) ASR(ctx context.Context, url, wavPath string, opts ASROptions) (*ASRResp, error) {
	fd, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", wavPath, err)
	}
	defer fd.Close()

	var out ASRResp
	err = h.postFile(ctx, "asr", url+"/transcribe", upload{
		field:    "file",
		filename: filepath.Base(wavPath),
		body:     fd,
		fields:   opts.fields(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
