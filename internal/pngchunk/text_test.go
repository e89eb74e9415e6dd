package pngchunk

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

func TestIsTextChunk(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{TypeTEXt, true},
		{TypeZTXt, true},
		{TypeITXt, true},
		{TypeIHDR, false},
		{"IDAT", false},
		{"text", false},
	}
	for _, tt := range tests {
		if got := IsTextChunk(tt.typ); got != tt.want {
			t.Errorf("IsTextChunk(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestParseText_TEXt(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantKey string
		wantVal string
	}{
		{"simple", []byte("parameters\x00a cat"), "parameters", "a cat"},
		{"trimmed", []byte("  Comment \x00\n  value  \n"), "Comment", "value"},
		{"latin1 value", []byte("parameters\x00caf\xe9"), "parameters", "café"},
		{"no separator", []byte("Title"), "Title", ""},
		{"nul in value kept after first", []byte("k\x00a\x00b"), "k", "a\x00b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txt, err := ParseText(Chunk{Type: TypeTEXt, Data: tt.data})
			if err != nil {
				t.Fatalf("ParseText: %v", err)
			}
			if txt.Keyword != tt.wantKey || txt.Value != tt.wantVal {
				t.Errorf("got (%q, %q), want (%q, %q)", txt.Keyword, txt.Value, tt.wantKey, tt.wantVal)
			}
			if txt.Compressed {
				t.Error("tEXt is never compressed")
			}
		})
	}
}

func TestParseText_CompressedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf)
	if err := w.WriteCompressedText("parameters", "a dog\nSteps: 30"); err != nil {
		t.Fatalf("WriteCompressedText: %v", err)
	}
	if err := w.WriteInternationalText("invokeai_metadata", `{"prompt":"猫"}`, true); err != nil {
		t.Fatalf("WriteInternationalText: %v", err)
	}
	if err := w.WriteInternationalText("Description", "plain", false); err != nil {
		t.Fatalf("WriteInternationalText: %v", err)
	}

	r, _ := NewReader(&buf)
	var texts []Text
	for c := range r.All() {
		txt, err := ParseText(c)
		if err != nil {
			t.Fatalf("ParseText(%s): %v", c.Type, err)
		}
		texts = append(texts, txt)
	}

	if len(texts) != 3 {
		t.Fatalf("got %d texts, want 3", len(texts))
	}
	if texts[0].Keyword != "parameters" || texts[0].Value != "a dog\nSteps: 30" || !texts[0].Compressed {
		t.Errorf("zTXt decoded as %+v", texts[0])
	}
	if texts[1].Value != `{"prompt":"猫"}` || !texts[1].Compressed {
		t.Errorf("compressed iTXt decoded as %+v", texts[1])
	}
	if texts[2].Value != "plain" || texts[2].Compressed {
		t.Errorf("iTXt decoded as %+v", texts[2])
	}
}

func TestParseText_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		c    Chunk
	}{
		{"zTXt no separator", Chunk{Type: TypeZTXt, Data: []byte("parameters")}},
		{"zTXt bad method", Chunk{Type: TypeZTXt, Data: []byte("k\x00\x05xx")}},
		{"zTXt not zlib", Chunk{Type: TypeZTXt, Data: []byte("k\x00\x00not zlib data")}},
		{"iTXt truncated header", Chunk{Type: TypeITXt, Data: []byte("k\x00")}},
		{"iTXt unterminated language", Chunk{Type: TypeITXt, Data: []byte("k\x00\x00\x00en")}},
		{"iTXt compressed garbage", Chunk{Type: TypeITXt, Data: []byte("k\x00\x01\x00\x00\x00garbage")}},
		{"not a text chunk", Chunk{Type: TypeIHDR, Data: make([]byte, 13)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseText(tt.c); !errors.Is(err, ErrCorruptText) {
				t.Errorf("ParseText() error = %v, want ErrCorruptText", err)
			}
		})
	}
}

func TestWriteText_RejectsNonLatin1(t *testing.T) {
	w, _ := NewWriter(&bytes.Buffer{})
	if err := w.WriteText("parameters", "猫"); err == nil {
		t.Error("expected an error for a value outside Latin-1")
	}
}

func TestInsertText(t *testing.T) {
	var src bytes.Buffer
	if err := png.Encode(&src, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}

	out, err := InsertText(src.Bytes(), "parameters", "Steps: 20")
	if err != nil {
		t.Fatalf("InsertText: %v", err)
	}

	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("result is not a decodable PNG: %v", err)
	}

	r, _ := NewReader(bytes.NewReader(out), WithChecksumValidation(true))
	var order []string
	for c := range r.All() {
		order = append(order, c.Type)
	}
	if len(order) < 3 || order[0] != TypeIHDR || order[1] != TypeTEXt {
		t.Errorf("tEXt should follow IHDR, chunk order = %v", order)
	}
	if !r.WellFormed() {
		t.Error("output should be well-formed")
	}
}

func TestInsertText_RejectsNonPNG(t *testing.T) {
	if _, err := InsertText([]byte("nope"), "k", "v"); !errors.Is(err, ErrNotPNG) {
		t.Errorf("InsertText() error = %v, want ErrNotPNG", err)
	}
}
