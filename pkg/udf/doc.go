/*
Package udf is the UDF Contract Layer (C3).

It holds the pure part of calling a worker-side user-defined function:
declaring a function's parameter and output kinds, type-checking a set of
call-site arguments against that declaration, resolving each output's
schema, and generating the SQL-level artifact — the function definition
text, the invocation statement, and the per-output Result descriptors —
that pkg/rpc.RunUDFRequest carries to a worker. No network or disk I/O
happens here; the actual call crosses into pkg/rpc.RunUDF, and
pkg/executor is the only caller of this package.

# I/O kinds

relation: a table of named, typed columns, one row per observation.
tensor / merge_tensor: an N-dimensional array encoded as (dim0, ..., val)
rows; merge_tensor additionally carries a merge discriminant column.
transfer / merge_transfer: a small JSON-shaped payload passed between a
local step and the global step; merge_transfer aggregates one per
contributing node.
state: an opaque, worker-local checkpoint a later step on the same worker
can read back.
secure_transfer: a transfer payload tagged with an aggregation op
(sum/min/max) the worker (or the SMPC cluster) applies across
contributors before the global step sees it.
literal: a plain value baked into the call, not backed by any table.
placeholder / logger: parameters with no data-carrying argument, declared
only so a UDF body can reference per-call context.

# Usage

	reg := udf.NewRegistry()
	reg.Register(udf.Declaration{
		Name:       "udf_paired_ttest_local",
		Positional: []udf.ParamSpec{{Name: udf.KindRelation}, {Name: udf.KindRelation}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindSecureTransfer, SecureOp: udf.SecureSum}},
	})

	decl, _ := reg.Lookup("udf_paired_ttest_local")
	call, err := udf.Bind(decl, []udf.Arg{{Kind: udf.KindRelation, Table: &y}, {Kind: udf.KindRelation, Table: &x}}, nil)
	schemas := udf.ResolveOutputSchemas(call)
	names := udf.OutputTableNames(nodeID, contextID, commandID, decl.Outputs)
	artifact, err := udf.GenerateArtifact(call, decl.Name, names, schemas, useSMPC)
*/
package udf
