package clients

import (
	"bytes"
	"context"
	"fmt"
	"math"
)

// --- Voice gender (/classify) ---
type GenderResp struct {
	MaleProbability float64 `json:"male_probability"`
}

// Classify posts one WAV slice and returns the probability that the voice is
// male. Out-of-range probabilities are rejected.
func (h *HTTP) Classify(ctx context.Context, url, filename string, wav []byte) (float64, error) {
	var out GenderResp
	err := h.postFile(ctx, "classify", url+"/classify", upload{
		field:    "file",
		filename: filename,
		body:     bytes.NewReader(wav),
	}, &out)
	if err != nil {
		return 0, err
	}
	if p := out.MaleProbability; math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("classify: probability %v out of range", out.MaleProbability)
	}
	return out.MaleProbability, nil
}
