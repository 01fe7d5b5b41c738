package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
	ErrEmptySlice     = errors.New("empty audio slice")
)

const (
	formatPCM   = 1
	formatFloat = 3
)

type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// WAV is an open RIFF/WAVE file whose sample data is read on demand.
type WAV struct {
	Format

	f        *os.File
	dataOff  int64
	dataSize int64
}

func Open(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	w := &WAV{f: f}
	if err := w.parse(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *WAV) Close() error { return w.f.Close() }

func (w *WAV) parse() error {
	header := make([]byte, 12)
	if _, err := io.ReadFull(w.f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return ErrInvalidWAV
	}

	var hasFmt, hasData bool
	for !(hasFmt && hasData) {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(w.f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("read wav chunk header: %w", err)
		}
		chunkID := string(chunkHeader[:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))

		start, err := w.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("seek wav chunk start: %w", err)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return ErrInvalidWAV
			}
			buf := make([]byte, 16)
			if _, err := io.ReadFull(w.f, buf); err != nil {
				return fmt.Errorf("read wav fmt chunk: %w", err)
			}
			w.AudioFormat = binary.LittleEndian.Uint16(buf[0:2])
			w.Channels = binary.LittleEndian.Uint16(buf[2:4])
			w.SampleRate = binary.LittleEndian.Uint32(buf[4:8])
			w.BlockAlign = binary.LittleEndian.Uint16(buf[12:14])
			w.BitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			hasFmt = true
		case "data":
			w.dataOff = start
			w.dataSize = chunkSize
			// streamed writers leave the size at 0 or 0xFFFFFFFF
			if fi, err := w.f.Stat(); err == nil {
				if rest := fi.Size() - start; chunkSize == 0 || chunkSize > rest {
					w.dataSize = rest
				}
			}
			hasData = true
		}

		skip := chunkSize
		if chunkSize%2 != 0 {
			skip++
		}
		if _, err := w.f.Seek(start+skip, io.SeekStart); err != nil {
			return fmt.Errorf("seek wav chunk: %w", err)
		}
	}

	if !hasFmt || !hasData {
		return ErrInvalidWAV
	}
	if w.AudioFormat != formatPCM && w.AudioFormat != formatFloat {
		return fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, w.AudioFormat)
	}
	if w.Channels == 0 || w.SampleRate == 0 || w.BlockAlign == 0 {
		return ErrInvalidWAV
	}
	return nil
}

func (w *WAV) Frames() int64 { return w.dataSize / int64(w.BlockAlign) }

func (w *WAV) Duration() time.Duration {
	return time.Duration(w.Frames()) * time.Second / time.Duration(w.SampleRate)
}

// Slice returns [startMs, endMs) as a standalone WAV file. The range is
// clamped to the clip; an empty result is ErrEmptySlice.
func (w *WAV) Slice(startMs, endMs int64) ([]byte, error) {
	frames := w.Frames()
	from := clamp(startMs*int64(w.SampleRate)/1000, 0, frames)
	to := clamp(endMs*int64(w.SampleRate)/1000, 0, frames)
	if to <= from {
		return nil, fmt.Errorf("%w: %d-%dms", ErrEmptySlice, startMs, endMs)
	}

	n := (to - from) * int64(w.BlockAlign)
	var buf bytes.Buffer
	buf.Grow(44 + int(n))
	writeHeader(&buf, w.Format, uint32(n))

	data := make([]byte, n)
	if _, err := w.f.ReadAt(data, w.dataOff+from*int64(w.BlockAlign)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read wav samples: %w", err)
	}
	buf.Write(data)
	return buf.Bytes(), nil
}

// WriteSlice writes Slice(startMs, endMs) to path.
func (w *WAV) WriteSlice(path string, startMs, endMs int64) error {
	b, err := w.Slice(startMs, endMs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeHeader(buf *bytes.Buffer, f Format, dataSize uint32) {
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(buf, le, uint32(36)+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, le, uint32(16))
	_ = binary.Write(buf, le, f.AudioFormat)
	_ = binary.Write(buf, le, f.Channels)
	_ = binary.Write(buf, le, f.SampleRate)
	_ = binary.Write(buf, le, f.SampleRate*uint32(f.BlockAlign))
	_ = binary.Write(buf, le, f.BlockAlign)
	_ = binary.Write(buf, le, f.BitsPerSample)
	buf.WriteString("data")
	_ = binary.Write(buf, le, dataSize)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EncodePCM16 builds a 16-bit PCM WAV file from interleaved samples.
func EncodePCM16(samples []int16, sampleRate, channels int) []byte {
	f := Format{
		AudioFormat:   formatPCM,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		BlockAlign:    uint16(2 * channels),
		BitsPerSample: 16,
	}
	var buf bytes.Buffer
	writeHeader(&buf, f, uint32(2*len(samples)))
	_ = binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
