/*
Package pngchunk reads the chunk stream of a PNG file without decoding pixels.

A PNG file is an 8-byte signature followed by records of

	{uint32 big-endian length}{4-byte ASCII type}{length bytes payload}{uint32 CRC-32}

terminated by an IEND chunk. Generators store their parameters in the text
chunk types tEXt, zTXt and iTXt, which is all this package cares about
beyond framing.

# Usage

	r, err := pngchunk.NewReader(f)
	if errors.Is(err, pngchunk.ErrNotPNG) {
	    // not a PNG, no metadata
	}
	for c := range r.All() {
	    if !pngchunk.IsTextChunk(c.Type) {
	        continue
	    }
	    txt, err := pngchunk.ParseText(c)
	    ...
	}
	if !r.WellFormed() {
	    // the stream was truncated or corrupt; chunks seen so far are still valid
	}

The reader never returns an error for corrupt trailing data. It stops and
reports WellFormed() == false instead.
*/
package pngchunk
