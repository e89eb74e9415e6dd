/*
Package workers sizes the import worker pool.

Go 1.19+ sets GOMAXPROCS from the container CPU limit while runtime.NumCPU
still reports host CPUs, so pool sizes here are always derived from
GOMAXPROCS:

	// chunk scanning and metadata extraction are dominated by file reads
	n := workers.ForIO(32)

	// thumbnail-only batches spend their time resampling
	n := workers.ForCPU(8)

# Environment Variable Override

IMPORT_WORKERS pins the count regardless of multiplier; the per-call limit
still applies:

	IMPORT_WORKERS=4 aigen-import import /library

An explicit request (for example the CLI --workers flag) wins over both:

	n := workers.Resolve(flagValue, func() int { return workers.ForIO(32) })
*/
package workers
