package pngchunk

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"iter"
)

// Signature is the fixed 8-byte PNG file header.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ErrNotPNG is returned by NewReader when the stream does not start with
// the PNG signature.
var ErrNotPNG = errors.New("pngchunk: not a PNG stream")

// DefaultMaxChunkSize bounds a single chunk payload. The PNG format allows
// up to 2^31-1 bytes; metadata chunks are never close to that, and a huge
// declared length on a truncated file is almost always corruption.
const DefaultMaxChunkSize = 64 << 20

// Chunk types the package refers to by name.
const (
	TypeIHDR = "IHDR"
	TypeIEND = "IEND"
	TypeTEXt = "tEXt"
	TypeZTXt = "zTXt"
	TypeITXt = "iTXt"
)

// Chunk is one record from the stream. Data is owned by the caller.
type Chunk struct {
	Type string
	Data []byte
	CRC  uint32
}

// Option configures a Reader.
type Option func(*Reader)

// WithChecksumValidation makes the reader verify each chunk's CRC-32. A
// mismatch stops the scan and marks the stream as not well-formed.
func WithChecksumValidation(enabled bool) Option {
	return func(r *Reader) {
		r.validateCRC = enabled
	}
}

// WithTextOnly makes the reader discard the payload of every chunk that is
// not a text chunk instead of buffering it. Skipped chunks are still
// yielded with nil Data and are exempt from the size limit, so a large
// IDAT does not cost memory or end the scan.
func WithTextOnly(enabled bool) Option {
	return func(r *Reader) {
		r.textOnly = enabled
	}
}

// WithMaxChunkSize overrides DefaultMaxChunkSize.
func WithMaxChunkSize(n uint32) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxChunkSize = n
		}
	}
}

// Reader walks the chunks of a PNG stream. It is lazy, finite and cannot be
// restarted.
type Reader struct {
	r            *bufio.Reader
	validateCRC  bool
	textOnly     bool
	maxChunkSize uint32

	cur        Chunk
	done       bool
	sawEnd     bool
	malformed  bool
	chunkCount int
	err        error
}

// NewReader checks the PNG signature and returns a Reader positioned at the
// first chunk. A short read or a mismatched signature returns ErrNotPNG.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	br := bufio.NewReader(r)

	sig := make([]byte, len(Signature))
	if _, err := io.ReadFull(br, sig); err != nil || !bytes.Equal(sig, Signature) {
		return nil, ErrNotPNG
	}

	pr := &Reader{
		r:            br,
		maxChunkSize: DefaultMaxChunkSize,
	}
	for _, opt := range opts {
		opt(pr)
	}
	return pr, nil
}

// Next advances to the next chunk and reports whether one is available.
// It returns false after IEND, at end of stream, or on corruption.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}

	var header [8]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		// Clean EOF between chunks without IEND is still a truncated file.
		r.fail(err)
		return false
	}

	length := binary.BigEndian.Uint32(header[:4])
	typ := header[4:8]
	if !validType(typ) {
		r.stop(true)
		return false
	}
	skip := r.textOnly && !IsTextChunk(string(typ))
	if !skip && length > r.maxChunkSize {
		r.stop(true)
		return false
	}

	h := crc32.NewIEEE()
	h.Write(typ)

	var data []byte
	if skip {
		var sink io.Writer = io.Discard
		if r.validateCRC {
			sink = h
		}
		if _, err := io.CopyN(sink, r.r, int64(length)); err != nil {
			r.fail(err)
			return false
		}
	} else {
		data = make([]byte, length)
		if _, err := io.ReadFull(r.r, data); err != nil {
			r.fail(err)
			return false
		}
		if r.validateCRC {
			h.Write(data)
		}
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r.r, crcBuf[:]); err != nil {
		r.fail(err)
		return false
	}
	crc := binary.BigEndian.Uint32(crcBuf[:])

	if r.validateCRC && h.Sum32() != crc {
		r.stop(true)
		return false
	}

	r.cur = Chunk{Type: string(typ), Data: data, CRC: crc}
	r.chunkCount++

	if r.cur.Type == TypeIEND {
		r.sawEnd = true
		r.done = true
	}
	return true
}

// Chunk returns the chunk produced by the last successful Next.
func (r *Reader) Chunk() Chunk {
	return r.cur
}

// WellFormed reports whether the scan so far has been free of corruption.
// After iteration finishes it is true only if IEND was reached.
func (r *Reader) WellFormed() bool {
	if r.malformed {
		return false
	}
	if r.done {
		return r.sawEnd
	}
	return true
}

// Err returns the read error that ended the scan, if any. Truncation is
// not an error here; it only makes the stream not well-formed.
func (r *Reader) Err() error {
	return r.err
}

// Count returns the number of chunks read.
func (r *Reader) Count() int {
	return r.chunkCount
}

// All yields the remaining chunks. Breaking out of the loop leaves the
// reader where it stopped.
func (r *Reader) All() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for r.Next() {
			if !yield(r.cur) {
				return
			}
		}
	}
}

func (r *Reader) stop(malformed bool) {
	r.done = true
	r.cur = Chunk{}
	if malformed {
		r.malformed = true
	}
}

// fail stops the scan after a read error. End of input counts as
// truncation; anything else is kept for Err.
func (r *Reader) fail(err error) {
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		r.err = err
	}
	r.stop(true)
}

// validType reports whether b is four ASCII letters as chunk types must be.
func validType(b []byte) bool {
	for _, c := range b {
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
