package metadata

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"aigen-library/internal/pngchunk"
)

// writePNG writes a small decodable PNG with the given text chunks after IHDR.
func writePNG(t *testing.T, dir, name string, texts ...[2]string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	data := buf.Bytes()
	for i := len(texts) - 1; i >= 0; i-- {
		var err error
		data, err = pngchunk.InsertText(data, texts[i][0], texts[i][1])
		if err != nil {
			t.Fatalf("InsertText: %v", err)
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte // stored inline when len <= 4
}

// buildTIFF assembles a little-endian TIFF/EXIF block with an IFD0 and an
// optional Exif sub-IFD.
func buildTIFF(ifd0, exifIFD []tiffEntry) []byte {
	le := binary.LittleEndian
	const headerLen = 8

	ifdSize := func(n int) int { return 2 + 12*n + 4 }

	ifd0Entries := ifd0
	if len(exifIFD) > 0 {
		ifd0Entries = append(append([]tiffEntry{}, ifd0...), tiffEntry{tag: 0x8769, typ: 4, count: 1})
	}

	ifd0Off := headerLen
	exifOff := ifd0Off + ifdSize(len(ifd0Entries))
	dataOff := exifOff
	if len(exifIFD) > 0 {
		dataOff += ifdSize(len(exifIFD))
	}

	var data bytes.Buffer
	encode := func(entries []tiffEntry) []byte {
		var b bytes.Buffer
		binary.Write(&b, le, uint16(len(entries)))
		for _, e := range entries {
			binary.Write(&b, le, e.tag)
			binary.Write(&b, le, e.typ)
			binary.Write(&b, le, e.count)
			switch {
			case e.tag == 0x8769:
				binary.Write(&b, le, uint32(exifOff))
			case len(e.data) <= 4:
				v := make([]byte, 4)
				copy(v, e.data)
				b.Write(v)
			default:
				binary.Write(&b, le, uint32(dataOff+data.Len()))
				data.Write(e.data)
				if data.Len()%2 == 1 {
					data.WriteByte(0)
				}
			}
		}
		binary.Write(&b, le, uint32(0))
		return b.Bytes()
	}

	var out bytes.Buffer
	out.WriteString("II")
	binary.Write(&out, le, uint16(42))
	binary.Write(&out, le, uint32(ifd0Off))
	out.Write(encode(ifd0Entries))
	if len(exifIFD) > 0 {
		out.Write(encode(exifIFD))
	}
	out.Write(data.Bytes())
	return out.Bytes()
}

func asciiEntry(tag uint16, s string) tiffEntry {
	b := append([]byte(s), 0)
	return tiffEntry{tag: tag, typ: 2, count: uint32(len(b)), data: b}
}

func longEntry(tag uint16, v uint32) tiffEntry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return tiffEntry{tag: tag, typ: 4, count: 1, data: b}
}

func userCommentEntry(charset string, body []byte) tiffEntry {
	prefix := make([]byte, 8)
	copy(prefix, charset)
	b := append(prefix, body...)
	return tiffEntry{tag: 0x9286, typ: 7, count: uint32(len(b)), data: b}
}

// withEXIF returns a JPEG with an APP1 Exif segment carrying tiffData.
func withEXIF(t *testing.T, tiffData []byte) []byte {
	t.Helper()
	var img bytes.Buffer
	if err := jpeg.Encode(&img, image.NewGray(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	raw := img.Bytes()

	payload := append([]byte("Exif\x00\x00"), tiffData...)
	var out bytes.Buffer
	out.Write(raw[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(raw[2:])
	return out.Bytes()
}

// webpWithEXIF wraps tiffData in a minimal RIFF WebP container.
func webpWithEXIF(tiffData []byte) []byte {
	var chunks bytes.Buffer
	writeChunk := func(id string, body []byte) {
		chunks.WriteString(id)
		binary.Write(&chunks, binary.LittleEndian, uint32(len(body)))
		chunks.Write(body)
		if len(body)%2 == 1 {
			chunks.WriteByte(0)
		}
	}
	writeChunk("VP8X", make([]byte, 10))
	writeChunk("EXIF", tiffData)

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(4+chunks.Len()))
	out.WriteString("WEBP")
	out.Write(chunks.Bytes())
	return out.Bytes()
}
