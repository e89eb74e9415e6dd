package pngchunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
)

// ErrCorruptText is returned by ParseText when a text chunk is structurally
// invalid or its compressed payload cannot be inflated.
var ErrCorruptText = errors.New("pngchunk: corrupt text chunk")

// maxInflatedText caps decompressed text so a zip bomb in a zTXt chunk
// cannot exhaust memory.
const maxInflatedText = 8 << 20

// Text is a decoded keyword/value pair. Both sides are trimmed.
type Text struct {
	Keyword    string
	Value      string
	Compressed bool
	// Language and TranslatedKeyword are only set for iTXt.
	Language          string
	TranslatedKeyword string
}

// IsTextChunk reports whether typ carries a keyword/value text payload.
func IsTextChunk(typ string) bool {
	switch typ {
	case TypeTEXt, TypeZTXt, TypeITXt:
		return true
	}
	return false
}

// ParseText decodes a tEXt, zTXt or iTXt chunk. tEXt and zTXt are Latin-1;
// iTXt is UTF-8. Compressed payloads are inflated.
func ParseText(c Chunk) (Text, error) {
	switch c.Type {
	case TypeTEXt:
		key, rest, ok := bytes.Cut(c.Data, []byte{0})
		if !ok {
			// A keyword with no separator is legal but carries no value.
			return Text{Keyword: latin1(key)}, nil
		}
		return Text{Keyword: latin1(key), Value: latin1(rest)}, nil

	case TypeZTXt:
		key, rest, ok := bytes.Cut(c.Data, []byte{0})
		if !ok || len(rest) < 1 {
			return Text{}, fmt.Errorf("%w: zTXt missing compression method", ErrCorruptText)
		}
		if rest[0] != 0 {
			return Text{}, fmt.Errorf("%w: zTXt compression method %d", ErrCorruptText, rest[0])
		}
		raw, err := inflate(rest[1:])
		if err != nil {
			return Text{}, fmt.Errorf("%w: %v", ErrCorruptText, err)
		}
		return Text{Keyword: latin1(key), Value: latin1(raw), Compressed: true}, nil

	case TypeITXt:
		return parseITXt(c.Data)
	}
	return Text{}, fmt.Errorf("%w: %s is not a text chunk", ErrCorruptText, c.Type)
}

// iTXt: keyword\0 flag method language\0 translated\0 text
func parseITXt(data []byte) (Text, error) {
	key, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(rest) < 2 {
		return Text{}, fmt.Errorf("%w: iTXt header truncated", ErrCorruptText)
	}
	compressed := rest[0] == 1
	method := rest[1]
	rest = rest[2:]

	lang, rest, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return Text{}, fmt.Errorf("%w: iTXt language tag unterminated", ErrCorruptText)
	}
	translated, value, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return Text{}, fmt.Errorf("%w: iTXt translated keyword unterminated", ErrCorruptText)
	}

	if compressed {
		if method != 0 {
			return Text{}, fmt.Errorf("%w: iTXt compression method %d", ErrCorruptText, method)
		}
		raw, err := inflate(value)
		if err != nil {
			return Text{}, fmt.Errorf("%w: %v", ErrCorruptText, err)
		}
		value = raw
	}

	return Text{
		Keyword:           latin1(key),
		Value:             strings.TrimSpace(string(value)),
		Compressed:        compressed,
		Language:          string(lang),
		TranslatedKeyword: string(translated),
	}, nil
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxInflatedText+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflatedText {
		return nil, errors.New("inflated text exceeds limit")
	}
	return out, nil
}

func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.TrimSpace(string(b))
	}
	return strings.TrimSpace(string(s))
}
