// Package logging provides a simple leveled logging interface for the
// image library importer.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the DEBUG or LOG_LEVEL environment
// variables and can be overridden at runtime with SetLevel. Packages that
// log a lot use a Component logger so their lines carry a stable prefix.
package logging
