// Package memory keeps import runs inside a container's memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the container limit, since Go
// detects cgroup CPU limits but not memory limits:
//
//   - GOMEMLIMIT: standard Go variable; when set it wins and is only reported
//   - MEMORY_LIMIT: container limit in bytes, usually from the Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap, default 0.85
//
// A Kubernetes pod spec passes the limit like this:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// [Monitor] samples heap usage and pauses import workers between files while
// usage is critical. Decoding a large PNG for a thumbnail can allocate
// hundreds of megabytes, so a burst of them across workers is what this
// guards against.
package memory
