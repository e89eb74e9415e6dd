/*
Package metadata turns the text embedded by AI image generators into one
canonical record.

Generators disagree on where and how they store their parameters. A1111 and
its forks write a free-text block under a "parameters" keyword; InvokeAI,
NovelAI, Dream, Fooocus and StableSwarm write JSON under their own keywords;
JPEG and WebP exports carry the A1111 block in the EXIF UserComment tag.

The pipeline is:

	pngchunk.Reader -> Classify(keyword, value) -> Decode(eco, value) -> Metadata

Decoders are pure functions returning a Metadata value. The Extractor runs
them over a file and wraps the outcome in a Result: either Success with at
least one field set, or RequiresManualEntry with a Reason.

Within one PNG the first text chunk that decodes to a non-empty record wins;
records from several chunks are never merged.
*/
package metadata
