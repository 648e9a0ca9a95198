/*
Package cleaner is C5, the garbage collector for per-execution artifacts.

It subscribes to pkg/events for three signals from the executor and
controller: a context was created, a node was touched by some artifact
for a context, and a context's request was released (finished, success or
failure). Node-touch and release events are folded into a durable
context_id -> set<node_id> map (pkg/storage); a background loop then
periodically sweeps every context past its grace period and issues an
idempotent cleanup(context_id) RPC to each node still in its set. A
successful response removes that node; an empty set discards the entry.
Unreachable nodes remain until a later sweep succeeds, guaranteeing no
artifact survives more than one grace period after its worker becomes
reachable again.

# Usage

	cl := cleaner.New(store, dialFunc, 60*time.Second, 30*time.Second, broker)
	cl.Start()
	defer cl.Stop()
*/
package cleaner
