/*
Package api is the controller's external HTTP facade (C6's entry point).

It exposes three JSON endpoints on one net/http.ServeMux: POST
/algorithms/{name} decodes a request body, drives it through a Controller,
and serializes the terminal result; GET /algorithms lists the algorithm
catalog; GET /datasets flattens the current registry snapshot. /health,
/ready, and /metrics round out the surface for process supervision and
scraping.

There is no generated transport stub here and no router dependency: this
facade has no protobuf contract to generate stubs against, so its entire
surface follows the same plain net/http style other processes in this
system already use for health and metrics endpoints.

Every inbound request is assigned a request id (reusing the caller's
X-Request-Id header if present) before any handler runs; that id is
threaded through context.Context into the controller call so it tags
every downstream RPC and log line, independent of the per-run context id
the controller itself allocates.

# Status codes

	200  algorithm-defined JSON result
	400  malformed request body
	460  bad user input (unknown data model/dataset, parameter out of range,
	     or a worker-side RemoteError{kind=USER} re-raised by the controller)
	500  everything else (Incompatible, Unreachable, Timeout, RemoteInternal,
	     SMPCFailure, UDFContractViolation, Cancelled)

# Usage

	srv := api.NewServer(ctrl, reg, catalog)
	http.ListenAndServe(cfg.ListenAddr, srv)
*/
package api
