/*
Package events provides an in-memory event broker that carries node-touch
and context-lifecycle notifications from the executor to the cleaner.

# Why a broker instead of a direct call

The executor's job is to run algorithm steps; the cleaner's job is to
remember which nodes a context touched so it can tell them to drop their
tables later. The executor should not need to import the cleaner to do
its own job, so it publishes events instead and the cleaner subscribes.

# Event Types

EventContextCreated: the controller allocated a context id for a new
request, before any worker has been touched.

EventNodeTouched: the executor successfully created a table or ran a UDF
on a worker for a context. Carries ContextID and NodeID; the cleaner
folds these into its context_id -> set<node_id> map.

EventContextReleased: the controller's request finished, successfully or
not. The cleaner schedules the context's nodes for a cleanup sweep after
its grace period.

EventStepFailed: an executor step terminated in a failed state, for
metrics and structured logging, not cleanup.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			switch ev.Type {
			case events.EventNodeTouched:
				cleaner.Track(ev.ContextID, ev.NodeID)
			case events.EventContextReleased:
				cleaner.Release(ev.ContextID)
			}
		}
	}()

	broker.Publish(&events.Event{
		Type:      events.EventNodeTouched,
		ContextID: "ctx1",
		NodeID:    "node0",
	})

# Delivery semantics

Publish never blocks the caller beyond the broker's own 100-event buffer;
a full subscriber buffer drops that event for that subscriber rather than
stalling the broadcast loop. This is acceptable here because the cleaner
also runs a periodic sweep independent of events (see pkg/cleaner) — a
dropped EventNodeTouched delays cleanup of that node, it does not lose it
permanently, since the context itself still carries its full node set at
release time.
*/
package events
