package metadata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
)

func TestExtract_PNGStructuredText(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", [2]string{"parameters",
		"x\nSteps: 20, Sampler: Euler a, CFG scale: 7, Seed: 42, Size: 512x512, Model: demo"})

	res := NewExtractor().Extract(context.Background(), path)

	if !res.Success || res.RequiresManualEntry {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Ecosystem != EcosystemA1111 {
		t.Errorf("Ecosystem = %v, want a1111", res.Ecosystem)
	}
	md := res.Metadata
	if md.Steps == nil || *md.Steps != 20 || derefString(md.Sampler) != "Euler a" ||
		md.CFGScale == nil || *md.CFGScale != 7 || md.Seed == nil || *md.Seed != 42 ||
		md.Width == nil || *md.Width != 512 || md.Height == nil || *md.Height != 512 ||
		derefString(md.ModelName) != "demo" {
		t.Errorf("unexpected metadata: %+v", md)
	}
}

func TestExtract_PNGJSON(t *testing.T) {
	path := writePNG(t, t.TempDir(), "b.png", [2]string{"invokeai_metadata", `{"prompt":"y","steps":10}`})

	res := NewExtractor(WithCRCValidation(true)).Extract(context.Background(), path)

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if derefString(res.Metadata.Prompt) != "y" || res.Metadata.Steps == nil || *res.Metadata.Steps != 10 {
		t.Errorf("unexpected metadata: %+v", res.Metadata)
	}
	if derefString(res.Metadata.ModelName) != "InvokeAI" {
		t.Errorf("ModelName = %q, want InvokeAI", derefString(res.Metadata.ModelName))
	}
}

func TestExtract_FirstMatchingChunkWins(t *testing.T) {
	path := writePNG(t, t.TempDir(), "multi.png",
		[2]string{"Software", "paint program"},
		[2]string{"parameters", "first\nSteps: 1"},
		[2]string{"invokeai_metadata", `{"prompt":"second","steps":2,"seed":3}`},
	)

	res := NewExtractor().Extract(context.Background(), path)

	if derefString(res.Metadata.Prompt) != "first" {
		t.Errorf("Prompt = %q, want the first matching chunk", derefString(res.Metadata.Prompt))
	}
	if res.Metadata.Seed != nil {
		t.Error("records from later chunks must not be merged")
	}
}

func TestExtract_Unresolved(t *testing.T) {
	dir := t.TempDir()

	noMeta := writePNG(t, dir, "missing-metadata.png", [2]string{"Software", "demo tool"})
	gif := filepath.Join(dir, "anim.gif")
	if err := os.WriteFile(gif, []byte("GIF89a"), 0o644); err != nil {
		t.Fatal(err)
	}
	fakePNG := filepath.Join(dir, "fake.png")
	if err := os.WriteFile(fakePNG, []byte("not really a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	plainJPEG := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(plainJPEG, withEXIF(t, buildTIFF(nil, []tiffEntry{longEntry(0xA002, 4)})), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		reason Reason
	}{
		{"no matching keyword", noMeta, ReasonNoMetadataFound},
		{"missing file", filepath.Join(dir, "gone.png"), ReasonFileNotFound},
		{"unsupported extension", gif, ReasonUnsupportedFormat},
		{"bad signature", fakePNG, ReasonNoMetadataFound},
		{"jpeg without generation tags", plainJPEG, ReasonNoMetadataFound},
		{"directory", dir, ReasonUnsupportedFormat},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(context.Background(), tt.path)
			if res.Success {
				t.Fatalf("expected failure, got %+v", res)
			}
			if !res.RequiresManualEntry {
				t.Error("unresolved results must require manual entry")
			}
			if res.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.reason)
			}
			if res.Message == "" {
				t.Error("unresolved results need a message")
			}
			if !res.Metadata.IsEmpty() {
				t.Errorf("unresolved metadata should be empty: %+v", res.Metadata)
			}
		})
	}
}

func TestExtract_JPEGAndWebP(t *testing.T) {
	dir := t.TempDir()
	tiffData := buildTIFF(
		[]tiffEntry{asciiEntry(0x0131, "Fooocus")},
		[]tiffEntry{userCommentEntry("ASCII", []byte("misty forest\nSteps: 30"))},
	)

	jpg := filepath.Join(dir, "a.jpeg")
	if err := os.WriteFile(jpg, withEXIF(t, tiffData), 0o644); err != nil {
		t.Fatal(err)
	}
	webp := filepath.Join(dir, "a.webp")
	if err := os.WriteFile(webp, webpWithEXIF(tiffData), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{jpg, webp} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			res := NewExtractor().Extract(context.Background(), path)
			if !res.Success {
				t.Fatalf("expected success, got %+v", res)
			}
			if derefString(res.Metadata.Prompt) != "misty forest" {
				t.Errorf("Prompt = %q", derefString(res.Metadata.Prompt))
			}
			if derefString(res.Metadata.ModelName) != "Fooocus" {
				t.Errorf("ModelName = %q, want Software fallback", derefString(res.Metadata.ModelName))
			}
		})
	}
}

func TestExtract_Sidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("sidecar prompt\nSteps: 11"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := NewExtractor().Extract(context.Background(), path)
	if !res.Success || derefString(res.Metadata.Prompt) != "sidecar prompt" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExtract_SidecarFillsGaps(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", [2]string{"parameters", "embedded prompt\nSteps: 20"})
	if err := os.WriteFile(filepath.Join(dir, "a.txt"),
		[]byte("sidecar prompt\nSteps: 99, Seed: 7, Model: demo"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := NewExtractor().Extract(context.Background(), path)
	if !res.Success || res.Ecosystem != EcosystemA1111 {
		t.Fatalf("unexpected result: %+v", res)
	}
	md := res.Metadata
	if derefString(md.Prompt) != "embedded prompt" {
		t.Errorf("Prompt = %q, embedded value must win", derefString(md.Prompt))
	}
	if md.Steps == nil || *md.Steps != 20 {
		t.Errorf("Steps = %v, embedded value must win", md.Steps)
	}
	if md.Seed == nil || *md.Seed != 7 {
		t.Errorf("Seed = %v, want 7 from sidecar", md.Seed)
	}
	if derefString(md.ModelName) != "demo" {
		t.Errorf("ModelName = %q, want demo from sidecar", derefString(md.ModelName))
	}
}

func TestExtract_SidecarResolvesBareImage(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "bare.png")

	if res := NewExtractor().Extract(context.Background(), path); res.Success {
		t.Fatalf("bare PNG without sidecar should be unresolved, got %+v", res)
	}

	if err := os.WriteFile(filepath.Join(dir, "bare.txt"), []byte("a lighthouse\nSteps: 30"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := NewExtractor().Extract(context.Background(), path)
	if !res.Success || derefString(res.Metadata.Prompt) != "a lighthouse" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExtractPNG_ReadErrors(t *testing.T) {
	valid, err := os.ReadFile(writePNG(t, t.TempDir(), "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	head := valid[:len(valid)/2]

	tests := []struct {
		name string
		r    io.Reader
		want Reason
	}{
		{"device error", io.MultiReader(bytes.NewReader(head), iotest.ErrReader(errors.New("input/output error"))), ReasonExtractionFailed},
		{"truncated file", bytes.NewReader(head), ReasonNoMetadataFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewExtractor().extractPNG(context.Background(), "a.png", tt.r)
			if res.Success || res.Reason != tt.want {
				t.Errorf("extractPNG() = %+v, want reason %s", res, tt.want)
			}
		})
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	path := writePNG(t, t.TempDir(), "a.png", [2]string{"parameters", "x\nSteps: 1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewExtractor().Extract(ctx, path)
	if res.Success || res.Reason != ReasonCancelled {
		t.Errorf("cancelled extraction = %+v", res)
	}
}

func TestResultString(t *testing.T) {
	ok := resolved(Metadata{Steps: ptr(1)}, EcosystemNovelAI)
	if ok.String() != "NovelAI metadata" {
		t.Errorf("String() = %q", ok.String())
	}
	bad := unresolved(ReasonFileNotFound, "File not found")
	if bad.String() != "FileNotFound: File not found" {
		t.Errorf("String() = %q", bad.String())
	}
}
