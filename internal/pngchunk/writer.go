package pngchunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
)

// Writer emits a PNG chunk stream. It writes the signature on creation and
// leaves chunk ordering to the caller.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter writes the PNG signature to w.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := w.Write(Signature); err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// WriteChunk encodes one record with its CRC-32.
func (pw *Writer) WriteChunk(typ string, data []byte) error {
	if pw.err != nil {
		return pw.err
	}
	if len(typ) != 4 || !validType([]byte(typ)) {
		return fmt.Errorf("pngchunk: invalid chunk type %q", typ)
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:], typ)

	h := crc32.NewIEEE()
	h.Write(header[4:])
	h.Write(data)
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], h.Sum32())

	for _, b := range [][]byte{header[:], data, crc[:]} {
		if _, err := pw.w.Write(b); err != nil {
			pw.err = err
			return err
		}
	}
	return nil
}

// WriteText writes a tEXt chunk. Characters outside Latin-1 are rejected.
func (pw *Writer) WriteText(keyword, value string) error {
	payload, err := latin1Payload(keyword, value)
	if err != nil {
		return err
	}
	return pw.WriteChunk(TypeTEXt, payload)
}

// WriteCompressedText writes a zTXt chunk.
func (pw *Writer) WriteCompressedText(keyword, value string) error {
	k, err := charmap.ISO8859_1.NewEncoder().String(keyword)
	if err != nil {
		return fmt.Errorf("pngchunk: keyword not Latin-1: %w", err)
	}
	v, err := charmap.ISO8859_1.NewEncoder().String(value)
	if err != nil {
		return fmt.Errorf("pngchunk: value not Latin-1: %w", err)
	}
	compressed, err := deflate([]byte(v))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(k)
	buf.WriteByte(0)
	buf.WriteByte(0) // compression method: deflate
	buf.Write(compressed)
	return pw.WriteChunk(TypeZTXt, buf.Bytes())
}

// WriteInternationalText writes an iTXt chunk with a UTF-8 value,
// optionally compressed.
func (pw *Writer) WriteInternationalText(keyword, value string, compress bool) error {
	var buf bytes.Buffer
	buf.WriteString(keyword)
	buf.WriteByte(0)
	text := []byte(value)
	if compress {
		c, err := deflate(text)
		if err != nil {
			return err
		}
		text = c
		buf.Write([]byte{1, 0})
	} else {
		buf.Write([]byte{0, 0})
	}
	buf.WriteByte(0) // empty language tag
	buf.WriteByte(0) // empty translated keyword
	buf.Write(text)
	return pw.WriteChunk(TypeITXt, buf.Bytes())
}

// InsertText returns a copy of the PNG image src with a tEXt chunk placed
// right after IHDR. src must be a complete, well-formed PNG.
func InsertText(src []byte, keyword, value string) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w, err := NewWriter(&out)
	if err != nil {
		return nil, err
	}

	inserted := false
	for c := range r.All() {
		if err := w.WriteChunk(c.Type, c.Data); err != nil {
			return nil, err
		}
		if c.Type == TypeIHDR && !inserted {
			if err := w.WriteText(keyword, value); err != nil {
				return nil, err
			}
			inserted = true
		}
	}
	if !r.WellFormed() {
		return nil, errors.New("pngchunk: source image is not well-formed")
	}
	if !inserted {
		return nil, errors.New("pngchunk: source image has no IHDR")
	}
	return out.Bytes(), nil
}

func latin1Payload(keyword, value string) ([]byte, error) {
	k, err := charmap.ISO8859_1.NewEncoder().String(keyword)
	if err != nil {
		return nil, fmt.Errorf("pngchunk: keyword not Latin-1: %w", err)
	}
	v, err := charmap.ISO8859_1.NewEncoder().String(value)
	if err != nil {
		return nil, fmt.Errorf("pngchunk: value not Latin-1: %w", err)
	}
	return append(append([]byte(k), 0), v...), nil
}

func deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
