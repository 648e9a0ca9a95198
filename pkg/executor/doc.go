/*
Package executor is C4, the Algorithm Executor.

It interprets a Plan step by step: a LOCAL step fans out to every local
worker in parallel and waits for all to return; a GLOBAL step runs once on
the aggregator worker. Each step's inputs are resolved against outputs
already produced earlier in the plan (or the per-node dataset view the
controller materialized before the run started); the UDF contract layer
(pkg/udf) binds and validates the call before any RPC is issued.

After a step returns, each of its declared outputs is routed through its
sharing policy: none, a merge table of remote-table pointers built on the
global worker (local -> global), or a remote table created on every local
worker (global -> local). A secure-transfer output whose step opted into
SMPC takes the cluster path (pkg/smpc) instead of a plain merge.

A step that fails retryably (an Unreachable or Timeout worker) is retried
once, against only the workers that failed, under a freshly allocated
command id — command ids are never reused. A step that exhausts its
retries, or fails with any other kind, terminates the run: the executor
publishes a step.failed event and returns the error to its caller. The
cleaner does not act on step.failed; the controller, on getting the error
back, publishes context.released as it does after every run, and that is
what hands the context to the cleaner.

The terminal step's first output is fetched verbatim from the global
worker and returned to the caller.
*/
package executor
