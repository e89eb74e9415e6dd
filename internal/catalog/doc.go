// Package catalog persists imported images in SQLite.
//
// The catalog owns the known-paths predicate used to de-duplicate imports
// (HasPath) and receives import outcomes through Sink. Optional generation
// fields are stored as NULL when unknown so an empty prompt stays distinct
// from a missing one.
package catalog
