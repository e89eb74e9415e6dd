/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

AI image libraries are frequently kept on network shares. This package wraps
os.Stat, os.Open and os.Rename with retry logic for transient ESTALE (stale
file handle) errors so a flaky mount does not turn into spurious import
failures.

# Usage

	info, err := filesystem.StatWithRetry("/library/a.png", filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}

	f, err := filesystem.OpenWithRetry("/library/a.png", filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only ESTALE triggers retries. All other errors fail immediately.

# Metrics

Retry counters are reported through an Observer registered with SetObserver.
Paths are labeled with a volume name resolved by a VolumeResolver, typically
"library", "cache" or "database".
*/
package filesystem
