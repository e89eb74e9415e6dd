// Package handlers provides HTTP request handlers for the library API.
//
// It includes handlers for:
//   - Starting import runs and reporting their progress
//   - Listing, reading and deleting catalog entries
//   - Serving cached thumbnails
//   - Health checks, version and library stats
package handlers
