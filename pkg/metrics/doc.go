/*
Package metrics defines and registers the engine's Prometheus metrics and
exposes them for scraping.

# Categories

Registry: node and data-model counts from the most recent landscape scan,
plus scan-cycle duration (pkg/registry).

Executor: per-step duration and terminal-state counts by algorithm, and
the number of algorithm executions currently in flight (pkg/executor).

Worker RPC: per-method call duration and outcome counts. These are
registered and exported, but no package in this tree records them.

Cleaner: backlog size, sweep-cycle duration, and cleanup attempt outcomes
(pkg/cleaner).

SMPC: job duration and outcome counts for the external SMPC cluster path.

API: per-route request count and duration, and algorithm-run outcomes, at
the facade (pkg/api).

# Usage

	mux.Handle("/metrics", metrics.Handler())

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ExecutorStepDuration, algorithm, stepKind)

# Collector

Collector periodically samples the landscape aggregator and, if given one,
a cleanup-backlog source, for gauges that are easier to poll than to push
from every call site.
*/
package metrics
