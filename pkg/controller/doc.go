/*
Package controller is C6, the Controller Facade.

For one incoming algorithm request it: looks up the algorithm in the
catalog (pkg/algorithms implements Catalog); captures one landscape
snapshot from the registry and validates that the requested data model
exists and every requested dataset is covered by at least one LOCAL node;
picks the unique GLOBAL node (its absence is a fatal configuration error);
intersects the requested datasets against each candidate LOCAL node's own
holdings to get datasets_per_local_node; allocates a fresh context id and
announces it to the cleaner; materializes one joined dataset view per
local node; and hands the algorithm's Plan to the executor (pkg/executor).

The snapshot captured at the start of Run is used for the entire request,
so a mid-run landscape refresh never perturbs which nodes were selected.
The context is released to the cleaner when the run finishes, success or
failure, so its artifacts become eligible for the grace-period sweep.
*/
package controller
