package mediatypes

import (
	"path/filepath"
	"strings"
)

// Format identifies an image container by extension.
type Format string

const (
	// FormatPNG is the chunked PNG container that carries text metadata.
	FormatPNG Format = "png"
	// FormatJPEG is a JPEG/JFIF file, metadata lives in EXIF.
	FormatJPEG Format = "jpeg"
	// FormatWebP is a RIFF WebP file, metadata lives in EXIF.
	FormatWebP Format = "webp"
	// FormatGIF is a GIF image.
	FormatGIF Format = "gif"
	// FormatBMP is a Windows bitmap.
	FormatBMP Format = "bmp"
	// FormatTIFF is a TIFF image.
	FormatTIFF Format = "tiff"
	// FormatUnknown is anything outside the import allowlist.
	FormatUnknown Format = "unknown"
)

// ImageExtensions is the import allowlist. Only files with one of these
// extensions are ever counted by an import run.
var ImageExtensions = map[string]Format{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".webp": FormatWebP,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tiff": FormatTIFF,
	".tif":  FormatTIFF,
}

// MetadataFormats are the formats the metadata extractor can read.
var MetadataFormats = map[Format]bool{
	FormatPNG:  true,
	FormatJPEG: true,
	FormatWebP: true,
}

// MimeTypes maps formats to their MIME types.
var MimeTypes = map[Format]string{
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatWebP: "image/webp",
	FormatGIF:  "image/gif",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
}

// Ext returns the lowercase extension of path including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// FormatOf returns the Format for path based on its extension.
func FormatOf(path string) Format {
	if f, ok := ImageExtensions[Ext(path)]; ok {
		return f
	}
	return FormatUnknown
}

// IsImportable reports whether path passes the import allowlist.
func IsImportable(path string) bool {
	return FormatOf(path) != FormatUnknown
}

// HasMetadataSupport reports whether the extractor understands path's format.
func HasMetadataSupport(path string) bool {
	return MetadataFormats[FormatOf(path)]
}

// GetMimeType returns the MIME type for path.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(path string) string {
	if mime, ok := MimeTypes[FormatOf(path)]; ok {
		return mime
	}
	return "application/octet-stream"
}
