// Package mediatypes holds the image format tables shared by the importer,
// the metadata extractor and the thumbnail cache.
//
// It is dependency-free so any package can import it without cycles.
//
//	if !mediatypes.IsImportable(path) {
//	    return // never counted by an import run
//	}
//
//	switch mediatypes.FormatOf(path) {
//	case mediatypes.FormatPNG:
//	    // text chunks
//	case mediatypes.FormatJPEG, mediatypes.FormatWebP:
//	    // EXIF
//	}
package mediatypes
