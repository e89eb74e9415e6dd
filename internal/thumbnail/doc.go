// Package thumbnail keeps a directory of JPEG thumbnails keyed by source
// path and modification time.
//
// The key is a BLAKE2b-256 hash of the absolute path and the source mtime,
// so editing a file produces a new key and the stale thumbnail is simply
// never looked up again. Artifacts are written to a temp file in the cache
// directory and renamed into place, so readers never observe a partial
// JPEG even when several import workers generate the same thumbnail.
//
// A bounded in-memory LRU (MemoryCache) sits in front of the directory for
// callers that serve thumbnail bytes repeatedly, such as the HTTP API.
package thumbnail
