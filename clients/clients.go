package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTP talks to the model services. Per-call deadlines come from ctx; the
// client timeout is only a backstop.
type HTTP struct{ c *http.Client }

func NewHTTP() *HTTP { return &HTTP{c: &http.Client{Timeout: 60 * time.Minute}} }

type upload struct {
	field    string
	filename string
	body     io.Reader
	fields   map[string]string
	bearer   string
}

// postFile sends a multipart upload and decodes a JSON reply into out.
// name prefixes errors ("asr", "diarize", ...).
func (h *HTTP) postFile(ctx context.Context, name, url string, up upload, out any) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	for k, v := range up.fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("%s form field %s: %w", name, k, err)
		}
	}
	fw, err := w.CreateFormFile(up.field, up.filename)
	if err != nil {
		return fmt.Errorf("%s create form file: %w", name, err)
	}
	if _, err = io.Copy(fw, up.body); err != nil {
		return fmt.Errorf("%s copy audio: %w", name, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("%s close multipart: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if up.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+up.bearer)
	}

	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return fmt.Errorf("%s %s: %s", name, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", name, err)
	}
	return nil
}
