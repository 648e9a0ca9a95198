/*
Package rpc is the Worker RPC Client (C1): a narrow, typed gRPC surface
against a single worker, used by pkg/registry for discovery calls and by
pkg/executor for every table/UDF operation a step needs.

# Wire format

The worker fleet this engine talks to has no generated protobuf stubs in
reach, so each method is a plain gRPC unary call (service "fedmesh.Worker")
carrying JSON request/response structs through a custom encoding.Codec
(see codec.go) instead of proto.Marshal. The connection still gets gRPC's
framing, per-call deadlines, and status codes; only the payload encoding
differs from a typical generated client.

# Error classification

Every method funnels its gRPC status through classify, turning it into one
of ferrors' closed kinds: DeadlineExceeded -> Timeout, Unavailable/Canceled
-> Unreachable, InvalidArgument/FailedPrecondition -> BadUserInput,
anything else -> RemoteInternal. pkg/executor switches on ferrors.KindOf to
decide whether a step is retryable.

# Usage

	c, err := rpc.Dial("10.0.0.5:7000", "node1", 10*time.Second, 60*time.Second)
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.GetNodeInfo(ctx, requestID)
*/
package rpc
