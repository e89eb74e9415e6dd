package metadata

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/image/riff"
	"golang.org/x/text/encoding/unicode"
)

// ErrNoEXIF is returned when a file carries no EXIF block.
var ErrNoEXIF = errors.New("metadata: no EXIF data")

// maxEXIFChunk bounds the WebP EXIF chunk read into memory.
const maxEXIFChunk = 4 << 20

var (
	webpFourCC = riff.FourCC{'W', 'E', 'B', 'P'}
	exifFourCC = riff.FourCC{'E', 'X', 'I', 'F'}
)

// DecodeEXIF reads a JPEG or raw TIFF/EXIF stream. A1111 stores its
// parameters block in UserComment when saving JPEG or WebP; that block is
// run through DecodeA1111. Software, Model and Make are model name
// fallbacks. Pixel dimensions are only reported alongside some other
// generation field, since every photo has them.
func DecodeEXIF(r io.Reader) (Metadata, Ecosystem, error) {
	x, err := exif.Decode(r)
	if err != nil {
		if exif.IsCriticalError(err) {
			return Metadata{}, EcosystemUnknown, ErrNoEXIF
		}
		// Non-critical errors still leave a usable tag set.
		if x == nil {
			return Metadata{}, EcosystemUnknown, ErrNoEXIF
		}
	}

	var md Metadata
	eco := EcosystemEXIF

	if comment := userComment(x); comment != "" {
		if parsed := DecodeA1111(comment); !parsed.IsEmpty() {
			md = parsed
			eco = EcosystemA1111
		}
	}
	if md.Prompt == nil {
		if desc := stringTag(x, exif.ImageDescription); desc != "" {
			md.Prompt = nonEmpty(desc)
		}
	}
	for _, name := range []exif.FieldName{exif.Software, exif.Model, exif.Make} {
		if md.ModelName != nil {
			break
		}
		md.ModelName = nonEmpty(stringTag(x, name))
	}

	if md.IsEmpty() {
		return Metadata{}, EcosystemUnknown, nil
	}

	if md.Width == nil || md.Height == nil {
		w, werr := intTag(x, exif.PixelXDimension)
		h, herr := intTag(x, exif.PixelYDimension)
		if werr == nil && herr == nil && w > 0 && h > 0 {
			md.Width, md.Height = &w, &h
		}
	}
	return md, eco, nil
}

// DecodeWebPEXIF locates the EXIF chunk of a RIFF WebP file and decodes it
// with DecodeEXIF.
func DecodeWebPEXIF(r io.Reader) (Metadata, Ecosystem, error) {
	formType, rr, err := riff.NewReader(r)
	if err != nil {
		return Metadata{}, EcosystemUnknown, err
	}
	if formType != webpFourCC {
		return Metadata{}, EcosystemUnknown, errors.New("metadata: not a WebP file")
	}

	for {
		id, length, data, err := rr.Next()
		if err == io.EOF {
			return Metadata{}, EcosystemUnknown, ErrNoEXIF
		}
		if err != nil {
			return Metadata{}, EcosystemUnknown, err
		}
		if id != exifFourCC {
			continue
		}
		if length > maxEXIFChunk {
			return Metadata{}, EcosystemUnknown, ErrNoEXIF
		}
		payload, err := io.ReadAll(data)
		if err != nil {
			return Metadata{}, EcosystemUnknown, err
		}
		// Some encoders keep the JPEG APP1 "Exif\0\0" marker in front of the TIFF header.
		payload = bytes.TrimPrefix(payload, []byte("Exif\x00\x00"))
		return DecodeEXIF(bytes.NewReader(payload))
	}
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func intTag(x *exif.Exif, name exif.FieldName) (int, error) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, err
	}
	return tag.Int(0)
}

// userComment decodes the UNDEFINED UserComment tag, whose first 8 bytes
// name the character set.
func userComment(x *exif.Exif) string {
	tag, err := x.Get(exif.UserComment)
	if err != nil {
		return ""
	}
	raw := tag.Val
	if tag.Format() == tiff.StringVal {
		s, _ := tag.StringVal()
		return strings.TrimSpace(s)
	}
	if len(raw) < 8 {
		return ""
	}

	prefix, body := string(raw[:8]), raw[8:]
	var s string
	switch {
	case strings.HasPrefix(prefix, "UNICODE"):
		s = decodeUTF16(body)
	case strings.HasPrefix(prefix, "ASCII"), prefix == "\x00\x00\x00\x00\x00\x00\x00\x00":
		s = string(body)
	default:
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// decodeUTF16 handles both byte orders. piexif writes big-endian, Windows
// tools write little-endian; a BOM wins when present.
func decodeUTF16(b []byte) string {
	order := unicode.BigEndian
	if len(b) >= 2 && b[0] != 0 && b[1] == 0 {
		order = unicode.LittleEndian
	}
	out, err := unicode.UTF16(order, unicode.UseBOM).NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(out) {
		return ""
	}
	return string(out)
}
