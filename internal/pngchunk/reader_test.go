package pngchunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

type rawChunk struct {
	typ  string
	data []byte
}

func buildStream(t *testing.T, chunks ...rawChunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, c := range chunks {
		if err := w.WriteChunk(c.typ, c.data); err != nil {
			t.Fatalf("WriteChunk(%s): %v", c.typ, err)
		}
	}
	return buf.Bytes()
}

func collect(r *Reader) []Chunk {
	var out []Chunk
	for c := range r.All() {
		out = append(out, c)
	}
	return out
}

func TestNewReader_Signature(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{"valid signature", Signature, false},
		{"empty", nil, true},
		{"short", Signature[:5], true},
		{"jpeg magic", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F'}, true},
		{"text file", []byte("prompt: a cat"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.input))
			if tt.wantErr && !errors.Is(err, ErrNotPNG) {
				t.Errorf("NewReader() error = %v, want ErrNotPNG", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("NewReader() unexpected error: %v", err)
			}
		})
	}
}

func TestReader_WellFormedStream(t *testing.T) {
	data := buildStream(t,
		rawChunk{TypeIHDR, make([]byte, 13)},
		rawChunk{TypeTEXt, []byte("parameters\x00a cat")},
		rawChunk{"IDAT", []byte{1, 2, 3}},
		rawChunk{TypeIEND, nil},
	)

	r, err := NewReader(bytes.NewReader(data), WithChecksumValidation(true))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	chunks := collect(r)

	want := []string{TypeIHDR, TypeTEXt, "IDAT", TypeIEND}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if c.Type != want[i] {
			t.Errorf("chunk %d type = %q, want %q", i, c.Type, want[i])
		}
	}
	if !r.WellFormed() {
		t.Error("complete stream should be well-formed")
	}
	if r.Count() != 4 {
		t.Errorf("Count() = %d, want 4", r.Count())
	}
	if r.Next() {
		t.Error("Next() after IEND should return false")
	}
}

func TestReader_StopsAtIEND(t *testing.T) {
	data := buildStream(t,
		rawChunk{TypeIHDR, make([]byte, 13)},
		rawChunk{TypeIEND, nil},
		rawChunk{TypeTEXt, []byte("parameters\x00after end")},
	)

	r, _ := NewReader(bytes.NewReader(data))
	for _, c := range collect(r) {
		if c.Type == TypeTEXt {
			t.Error("chunks after IEND must not be yielded")
		}
	}
	if !r.WellFormed() {
		t.Error("trailing bytes after IEND do not make the stream malformed")
	}
}

func TestReader_TruncatedPayload(t *testing.T) {
	data := buildStream(t,
		rawChunk{TypeIHDR, make([]byte, 13)},
		rawChunk{TypeTEXt, []byte("parameters\x00Steps: 20")},
	)
	// Declare a payload far longer than what remains.
	var bad bytes.Buffer
	bad.Write(data)
	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], 5000)
	copy(header[4:], "tEXt")
	bad.Write(header[:])
	bad.WriteString("short")

	r, err := NewReader(&bad)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	chunks := collect(r)

	if len(chunks) != 2 {
		t.Fatalf("expected the 2 chunks before corruption, got %d", len(chunks))
	}
	if string(chunks[1].Data) != "parameters\x00Steps: 20" {
		t.Errorf("partial result corrupted: %q", chunks[1].Data)
	}
	if r.WellFormed() {
		t.Error("truncated stream must not be well-formed")
	}
}

func TestReader_MissingIEND(t *testing.T) {
	data := buildStream(t, rawChunk{TypeIHDR, make([]byte, 13)})

	r, _ := NewReader(bytes.NewReader(data))
	if got := len(collect(r)); got != 1 {
		t.Errorf("got %d chunks, want 1", got)
	}
	if r.WellFormed() {
		t.Error("stream without IEND must not be well-formed")
	}
}

func TestReader_MaxChunkSize(t *testing.T) {
	data := buildStream(t,
		rawChunk{TypeTEXt, []byte(strings.Repeat("x", 100))},
		rawChunk{TypeIEND, nil},
	)

	r, _ := NewReader(bytes.NewReader(data), WithMaxChunkSize(64))
	if got := len(collect(r)); got != 0 {
		t.Errorf("oversized chunk should stop the scan, got %d chunks", got)
	}
	if r.WellFormed() {
		t.Error("oversized chunk must mark the stream malformed")
	}
}

func TestReader_TextOnlySkipsLargePayloads(t *testing.T) {
	data := buildStream(t,
		rawChunk{"IDAT", bytes.Repeat([]byte{7}, 1000)},
		rawChunk{TypeTEXt, []byte("parameters\x00a cat")},
		rawChunk{TypeIEND, nil},
	)

	t.Run("skips and keeps text after it", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader(data),
			WithMaxChunkSize(64), WithTextOnly(true), WithChecksumValidation(true))
		chunks := collect(r)
		if len(chunks) != 3 {
			t.Fatalf("got %d chunks, want 3", len(chunks))
		}
		if chunks[0].Type != "IDAT" || chunks[0].Data != nil {
			t.Errorf("IDAT should be yielded without data, got %q with %d bytes", chunks[0].Type, len(chunks[0].Data))
		}
		if string(chunks[1].Data) != "parameters\x00a cat" {
			t.Errorf("text chunk data = %q", chunks[1].Data)
		}
		if !r.WellFormed() {
			t.Error("stream should be well-formed")
		}
	})

	t.Run("without text-only the limit still applies", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader(data), WithMaxChunkSize(64))
		if got := len(collect(r)); got != 0 {
			t.Errorf("got %d chunks, want 0", got)
		}
		if r.WellFormed() {
			t.Error("oversized chunk must mark the stream malformed")
		}
	})

	t.Run("checksum covers skipped payloads", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[len(Signature)+8+10] ^= 0xFF

		r, _ := NewReader(bytes.NewReader(corrupt), WithTextOnly(true), WithChecksumValidation(true))
		if got := len(collect(r)); got != 0 {
			t.Errorf("got %d chunks, want 0", got)
		}
		if r.WellFormed() {
			t.Error("bad checksum must mark the stream malformed")
		}
	})
}

func TestReader_ErrSeparatesIOFromTruncation(t *testing.T) {
	data := buildStream(t,
		rawChunk{TypeTEXt, []byte("parameters\x00a cat")},
		rawChunk{"IDAT", bytes.Repeat([]byte{1}, 100)},
		rawChunk{TypeIEND, nil},
	)
	head := data[:len(data)-40]
	ioErr := errors.New("input/output error")

	t.Run("truncated", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader(head))
		collect(r)
		if r.Err() != nil {
			t.Errorf("Err() = %v, want nil for truncation", r.Err())
		}
		if r.WellFormed() {
			t.Error("truncated stream must not be well-formed")
		}
	})

	t.Run("read error", func(t *testing.T) {
		r, _ := NewReader(io.MultiReader(bytes.NewReader(head), iotest.ErrReader(ioErr)))
		chunks := collect(r)
		if len(chunks) != 1 {
			t.Errorf("got %d chunks before the error, want 1", len(chunks))
		}
		if !errors.Is(r.Err(), ioErr) {
			t.Errorf("Err() = %v, want %v", r.Err(), ioErr)
		}
	})
}

func TestReader_InvalidChunkType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Signature)
	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], 0)
	copy(header[4:], "\x00\x01\x02\x03")
	buf.Write(header[:])
	buf.Write([]byte{0, 0, 0, 0})

	r, _ := NewReader(&buf)
	if r.Next() {
		t.Error("non-letter chunk type should stop the scan")
	}
	if r.WellFormed() {
		t.Error("garbage chunk type must mark the stream malformed")
	}
}

func TestReader_ChecksumValidation(t *testing.T) {
	data := buildStream(t,
		rawChunk{TypeTEXt, []byte("parameters\x00a cat")},
		rawChunk{TypeIEND, nil},
	)
	// Flip one payload byte of the first chunk, leaving its CRC stale.
	corrupted := bytes.Clone(data)
	corrupted[len(Signature)+8] ^= 0xFF

	t.Run("disabled", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader(corrupted))
		if got := len(collect(r)); got != 2 {
			t.Errorf("got %d chunks, want 2 with validation off", got)
		}
		if !r.WellFormed() {
			t.Error("CRC is not checked when validation is off")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader(corrupted), WithChecksumValidation(true))
		if got := len(collect(r)); got != 0 {
			t.Errorf("got %d chunks, want 0 with validation on", got)
		}
		if r.WellFormed() {
			t.Error("CRC mismatch must mark the stream malformed")
		}
	})
}

func TestReader_RealEncodedImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	r, err := NewReader(&buf, WithChecksumValidation(true))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	chunks := collect(r)

	if chunks[0].Type != TypeIHDR {
		t.Errorf("first chunk = %q, want IHDR", chunks[0].Type)
	}
	if w := binary.BigEndian.Uint32(chunks[0].Data[:4]); w != 4 {
		t.Errorf("IHDR width = %d, want 4", w)
	}
	if !r.WellFormed() {
		t.Error("encoder output should validate")
	}
}

func TestReader_BreakLeavesPosition(t *testing.T) {
	data := buildStream(t,
		rawChunk{TypeIHDR, make([]byte, 13)},
		rawChunk{TypeTEXt, []byte("a\x00b")},
		rawChunk{TypeIEND, nil},
	)

	r, _ := NewReader(bytes.NewReader(data))
	for c := range r.All() {
		if c.Type == TypeIHDR {
			break
		}
	}
	if !r.Next() || r.Chunk().Type != TypeTEXt {
		t.Errorf("expected to resume at tEXt, got %q", r.Chunk().Type)
	}
}
