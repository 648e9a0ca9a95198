// Package udf is the UDF Contract Layer (C3): a pure, in-memory function
// of (declaration, arguments) -> (generated SQL artifact, output table
// handles), used by pkg/executor to turn an algorithm step's intent into
// a concrete runUDF call. Bind type-checks a call against its
// declaration, ResolveOutputSchemas infers each output's schema, and
// GenerateArtifact renders the function definition text, the invocation
// statement, and the per-output Result descriptors pkg/rpc carries to a
// worker. Nothing in this package performs I/O; it only type-checks and
// generates text.
package udf

import (
	"fmt"
	"strings"

	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/types"
)

// IOKind tags the shape of one UDF input or output, mirroring the
// decorator vocabulary algorithms are written against (relation, tensor,
// merge_tensor, transfer, merge_transfer, state, secure_transfer,
// literal, placeholder, logger).
type IOKind string

const (
	KindRelation       IOKind = "relation"
	KindTensor         IOKind = "tensor"
	KindMergeTensor    IOKind = "merge_tensor"
	KindTransfer       IOKind = "transfer"
	KindMergeTransfer  IOKind = "merge_transfer"
	KindState          IOKind = "state"
	KindSecureTransfer IOKind = "secure_transfer"
	KindLiteral        IOKind = "literal"
	KindPlaceholder    IOKind = "placeholder"
	KindLogger         IOKind = "logger"
)

// SecureOp is the aggregation the worker applies to a secure_transfer
// output across participants, before or instead of SMPC.
type SecureOp string

const (
	SecureSum SecureOp = "sum"
	SecureMin SecureOp = "min"
	SecureMax SecureOp = "max"
)

// ParamSpec declares one UDF parameter's shape.
type ParamSpec struct {
	Name IOKind
	// Static, when non-nil, fixes the column schema regardless of what
	// the caller passes (e.g. a tensor of known rank). Nil means the
	// schema is inferred from the matching argument at call time.
	Static *types.Schema
	// SecureOp only applies to KindSecureTransfer params.
	SecureOp SecureOp
}

// Declaration is one registered UDF's full signature: its name, ordered
// positional parameters, named keyword parameters, and ordered outputs.
type Declaration struct {
	Name        string
	Positional  []ParamSpec
	Keyword     map[string]ParamSpec
	Outputs     []ParamSpec
}

// Registry is the set of UDF declarations known to an algorithm package.
// Algorithms register their local/global step functions here at init
// time; pkg/executor looks them up by name when building a step's call.
type Registry struct {
	decls map[string]Declaration
}

// NewRegistry returns an empty declaration registry.
func NewRegistry() *Registry {
	return &Registry{decls: map[string]Declaration{}}
}

// Register adds a declaration. It panics on a duplicate name, since UDF
// names are assigned at algorithm-package init time, not at request time.
func (r *Registry) Register(d Declaration) {
	if _, exists := r.decls[d.Name]; exists {
		panic(fmt.Sprintf("udf: duplicate registration for %q", d.Name))
	}
	r.decls[d.Name] = d
}

// Lookup returns the declaration for a registered UDF name.
func (r *Registry) Lookup(name string) (Declaration, bool) {
	d, ok := r.decls[name]
	return d, ok
}

// Arg is one concrete argument bound to a call: either a worker-side
// table reference (for relation/tensor/transfer/state/secure_transfer
// params) or a literal value.
type Arg struct {
	Kind    IOKind
	Table   *types.TableInfo
	Literal any
}

// Call is a fully-bound invocation: a declaration plus the arguments the
// executor resolved for one worker, for one step.
type Call struct {
	Decl    Declaration
	PosArgs []Arg
	KwArgs  map[string]Arg
}

// Bind type-checks a set of positional and keyword arguments against a
// declaration: arity must match exactly (no optional positional
// parameters), and each argument's kind must match its parameter's
// declared kind. Keyword-argument calls beyond this bind step are the
// caller's business; this layer only validates shape.
func Bind(decl Declaration, posArgs []Arg, kwArgs map[string]Arg) (Call, error) {
	if len(posArgs) != len(decl.Positional) {
		return Call{}, ferrors.New(ferrors.UDFContractViolation,
			fmt.Sprintf("%s: expected %d positional arguments, got %d", decl.Name, len(decl.Positional), len(posArgs)))
	}
	for i, spec := range decl.Positional {
		if err := checkKind(decl.Name, spec, posArgs[i]); err != nil {
			return Call{}, err
		}
	}
	for name, spec := range decl.Keyword {
		arg, ok := kwArgs[name]
		if !ok {
			return Call{}, ferrors.New(ferrors.UDFContractViolation,
				fmt.Sprintf("%s: missing required keyword argument %q", decl.Name, name))
		}
		if err := checkKind(decl.Name, spec, arg); err != nil {
			return Call{}, err
		}
	}
	for name := range kwArgs {
		if _, declared := decl.Keyword[name]; !declared {
			return Call{}, ferrors.New(ferrors.UDFContractViolation,
				fmt.Sprintf("%s: unexpected keyword argument %q", decl.Name, name))
		}
	}
	return Call{Decl: decl, PosArgs: posArgs, KwArgs: kwArgs}, nil
}

func checkKind(funcName string, spec ParamSpec, arg Arg) error {
	if spec.Name != arg.Kind {
		return ferrors.New(ferrors.UDFContractViolation,
			fmt.Sprintf("%s: parameter kind %s does not accept argument kind %s", funcName, spec.Name, arg.Kind))
	}
	if spec.Name == KindLiteral && arg.Literal == nil {
		return ferrors.New(ferrors.UDFContractViolation,
			fmt.Sprintf("%s: literal parameter received nil value", funcName))
	}
	if spec.Name != KindLiteral && spec.Name != KindPlaceholder && spec.Name != KindLogger && arg.Table == nil {
		return ferrors.New(ferrors.UDFContractViolation,
			fmt.Sprintf("%s: table-shaped parameter %s received no table", funcName, spec.Name))
	}
	return nil
}

// ResolveOutputSchemas returns, for each output parameter, the schema the
// worker should materialize: the declaration's static schema if one is
// given, or a schema inferred from the matching input argument's column
// count and types when the output kind matches an input's kind one-to-one
// (the common case: a relation UDF returning a relation of the same
// column count as its input). An output kind with neither a static schema
// nor an inferrable match is deferred to the worker, which reports the
// actual schema back in its RunUDF response.
func ResolveOutputSchemas(call Call) []*types.Schema {
	out := make([]*types.Schema, len(call.Decl.Outputs))
	for i, spec := range call.Decl.Outputs {
		if spec.Static != nil {
			out[i] = spec.Static
			continue
		}
		for _, arg := range call.PosArgs {
			if arg.Kind == spec.Name && arg.Table != nil {
				s := arg.Table.Schema
				out[i] = &s
				break
			}
		}
	}
	return out
}

// OutputTableNames builds the result table names for a call's outputs,
// one per output in declaration order, using the executor's naming
// context (node, context, command ids) and a distinct result id per
// output index.
func OutputTableNames(nodeID, contextID, commandID string, outputs []ParamSpec) []types.TableName {
	names := make([]types.TableName, len(outputs))
	for i := range outputs {
		names[i] = types.TableName{
			Type:      types.TableNormal,
			NodeID:    nodeID,
			ContextID: contextID,
			CommandID: commandID,
			ResultID:  fmt.Sprintf("r%d", i),
		}
	}
	return names
}

// FuncName derives the worker-registered UDF function name from an
// algorithm's step identity, matching the naming convention the original
// implementation used ("udf_" + algorithm + "_" + step), so a worker's
// function catalog stays predictable across runs of the same algorithm.
func FuncName(algorithm, step string) string {
	return strings.Join([]string{"udf", algorithm, step}, "_")
}
