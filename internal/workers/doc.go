/*
Package workers sizes bounded worker pools in containerized
environments.

Inside a container the usable CPU count comes from cgroup limits. Go
sets GOMAXPROCS from that limit, but runtime.NumCPU() still reports the
host machine, so sizing a pool from NumCPU on a 64-core node with a
2-core allowance produces 64 workers thrashing against the throttle.
This package sizes pools from GOMAXPROCS instead.

The scanner sizes its per-scan extraction pool with:

	n := workers.ForExtraction(8)

For other ratios use Count directly:

	n := workers.Count(1.0, 12) // one per CPU, max 12
	n := workers.Count(2.0, 0)  // two per CPU, no cap

The SCAN_WORKERS environment variable overrides the computed count; the
limit argument still applies.
*/
package workers
