// Package memory sizes the Go heap for containerized deployments and
// applies backpressure to extraction when it gets tight.
//
// The runtime derives GOMAXPROCS from cgroup CPU limits on its own, but
// GOMEMLIMIT has no such automatic source; a container that extracts a
// run of large comic archives can be OOM-killed before the collector
// feels any pressure. [ConfigureFromEnv] closes that gap at startup:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// An explicit GOMEMLIMIT always wins. Otherwise MEMORY_LIMIT (the
// container limit in bytes, usually injected by the runtime) scaled by
// MEMORY_RATIO becomes the heap budget. The default ratio of 0.85
// leaves room for poppler subprocesses and CGO allocations that the Go
// collector cannot see.
//
// [Monitor] then samples heap usage against that budget while the
// server runs. Past Config.PauseAbove it holds extraction workers
// ([Monitor.WaitIfPaused] blocks) and forces a collection; once usage
// falls under Config.ResumeBelow they continue. A scan burst degrades
// to slower indexing instead of a dead process.
package memory
