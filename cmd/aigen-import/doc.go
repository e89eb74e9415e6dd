// Command aigen-import imports AI-generated images from the command line.
//
// Usage:
//
//	aigen-import import <dir> [--recursive] [--workers N] [--db FILE] [--json]
//	aigen-import extract <file> [--json]
//	aigen-import thumbnail <file>
//	aigen-import cache clear|cleanup|stats
//
// import runs the same pipeline as the server's POST /api/import. With
// --db, outcomes are written to that catalog and files already in it are
// skipped. Progress goes to stderr when stderr is a terminal. Ctrl-C
// cancels the run and prints the partial result.
//
// Settings may also come from a .env file in the working directory.
package main
