package udf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/types"
)

// Result is one artifact output: either a single output table, or, for a
// secure_transfer output split for SMPC, a bundle of a zeroed template
// table plus the companion table for whichever aggregation op the output
// declares (at most one of SumOp/MinOp/MaxOp is set, since a ParamSpec
// carries a single SecureOp).
type Result struct {
	Name     types.TableName
	Schema   types.Schema
	Template *types.TableName
	SumOp    *types.TableName
	MinOp    *types.TableName
	MaxOp    *types.TableName
}

// Artifact is C3's generated output for one bound call: the SQL-level
// function definition text a worker CREATE OR REPLACEs before invoking it,
// the statement that invokes it, and one Result per declared output, named
// from the executor's naming context. Both Definition and Invocation are
// already resolved against FuncName and the output table names; nothing
// further needs substituting into them before they cross into pkg/rpc.
type Artifact struct {
	FuncName   string
	Definition string
	Invocation string
	Results    []Result
}

// boundArg names one resolved call argument for codegen: a positional
// argument gets a synthetic name from its kind and position, a keyword
// argument keeps its declared name.
type boundArg struct {
	name string
	arg  Arg
}

func collectArgs(call Call) []boundArg {
	args := make([]boundArg, 0, len(call.PosArgs)+len(call.KwArgs))
	for i, a := range call.PosArgs {
		args = append(args, boundArg{name: fmt.Sprintf("%s_%d", a.Kind, i), arg: a})
	}
	names := make([]string, 0, len(call.KwArgs))
	for name := range call.KwArgs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, boundArg{name: name, arg: call.KwArgs[name]})
	}
	return args
}

// GenerateArtifact builds the SQL-level artifact for a bound call: relation
// arguments are joined on row_id, tensor arguments on their dimension
// columns, and merge_tensor arguments are read alongside with no join
// clause at all — those three kinds make up the single joined input the
// generated function receives. transfer, merge_transfer, secure_transfer
// and state arguments are instead read by a loopback select inside the
// function body, literal arguments become body constants, and placeholder
// arguments become named substitution points with no bound table. Exactly
// one output is returned by the function call itself (the first declared
// output); any further outputs are written by explicit inserts into their
// pre-created companion tables, named from outputNames in declaration
// order.
func GenerateArtifact(call Call, funcName string, outputNames []types.TableName, outputSchemas []*types.Schema, useSMPC bool) (Artifact, error) {
	if len(outputNames) != len(call.Decl.Outputs) {
		return Artifact{}, ferrors.New(ferrors.UDFContractViolation,
			fmt.Sprintf("%s: expected %d output table names, got %d", funcName, len(call.Decl.Outputs), len(outputNames)))
	}

	args := collectArgs(call)
	definition := generateDefinition(funcName, args)
	invocation := generateInvocation(funcName, args, outputNames)

	results := make([]Result, len(call.Decl.Outputs))
	for i, spec := range call.Decl.Outputs {
		var schema types.Schema
		if outputSchemas[i] != nil {
			schema = *outputSchemas[i]
		}
		result := Result{Name: outputNames[i], Schema: schema}
		if spec.Name == KindSecureTransfer && useSMPC {
			applySecureOpBundle(&result, outputNames[i], spec.SecureOp)
		}
		results[i] = result
	}

	return Artifact{FuncName: funcName, Definition: definition, Invocation: invocation, Results: results}, nil
}

// generateDefinition builds the CREATE OR REPLACE FUNCTION text: one SQL
// parameter per table-shaped or placeholder argument, and a body that
// reads each bound argument into the shape funcName's worker-native
// implementation expects before dispatching to it.
func generateDefinition(funcName string, args []boundArg) string {
	var params []string
	var body []string
	for _, a := range args {
		if p := sqlParam(a); p != "" {
			params = append(params, p)
		}
		if line := bindingStatement(a); line != "" {
			body = append(body, line)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE FUNCTION %s(%s)\n", funcName, strings.Join(params, ", "))
	b.WriteString("RETURNS TABLE\n")
	b.WriteString("LANGUAGE PYTHON\n")
	b.WriteString("{\n")
	for _, line := range body {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	fmt.Fprintf(&b, "    return %s(%s)\n", funcName, strings.Join(bodyNames(args), ", "))
	b.WriteString("};")
	return b.String()
}

func bodyNames(args []boundArg) []string {
	names := make([]string, 0, len(args))
	for _, a := range args {
		if a.arg.Kind == KindLogger {
			continue
		}
		names = append(names, a.name)
	}
	return names
}

// sqlParam returns the declared SQL parameter for one argument, or "" when
// the argument carries no data of its own (logger).
func sqlParam(a boundArg) string {
	switch a.arg.Kind {
	case KindLogger:
		return ""
	case KindLiteral:
		return fmt.Sprintf("%s %s", a.name, literalSQLType(a.arg.Literal))
	case KindPlaceholder:
		return fmt.Sprintf("%s VARCHAR", a.name)
	default:
		return fmt.Sprintf("%s TABLE", a.name)
	}
}

func literalSQLType(v any) string {
	switch v.(type) {
	case int, int64, int32:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE"
	case bool:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// bindingStatement returns the body line that reads one bound argument
// into a named value the worker-native implementation can use, per the
// kind-specific rules in GenerateArtifact's doc comment.
func bindingStatement(a boundArg) string {
	switch a.arg.Kind {
	case KindRelation, KindTensor, KindMergeTensor, KindMergeTransfer:
		return fmt.Sprintf("%s = as_relational_table(_columns['%s'])", a.name, a.name)
	case KindTransfer, KindSecureTransfer:
		return fmt.Sprintf(`%s = _conn.execute("SELECT json_col FROM %s")`, a.name, a.name)
	case KindState:
		return fmt.Sprintf(`%s = _conn.execute("SELECT state_col FROM %s")`, a.name, a.name)
	case KindLiteral:
		return fmt.Sprintf("%s = %v", a.name, a.arg.Literal)
	case KindPlaceholder:
		return fmt.Sprintf("%s = \"$%s\"", a.name, a.name)
	default:
		return ""
	}
}

// generateInvocation builds the statement that calls funcName as a table
// function: the first declared output is filled by inserting the call's
// own result rows; any further declared outputs are appended as their own
// INSERT INTO ... SELECT against the same call. Each table-shaped
// argument is passed to the call directly, by name, in declaration order;
// a trailing comment records the join rule that argument's kind is bound
// by (row_id for a relation, its dimension columns for a tensor, no join
// clause for merge_tensor/merge_transfer, a loopback read for
// transfer/secure_transfer/state), since the worker — not this generated
// text — is what actually performs that join when it assembles the
// call's combined input.
func generateInvocation(funcName string, args []boundArg, outputNames []types.TableName) string {
	callArgs := bodyNames(args)
	note := joinNote(args)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s\n", outputNames[0].String())
	fmt.Fprintf(&b, "SELECT * FROM %s(%s)", funcName, strings.Join(callArgs, ", "))
	if note != "" {
		fmt.Fprintf(&b, " -- %s", note)
	}
	b.WriteString(";")
	for i := 1; i < len(outputNames); i++ {
		fmt.Fprintf(&b, "\nINSERT INTO %s\nSELECT * FROM %s(%s).result_%d;", outputNames[i].String(), funcName, strings.Join(callArgs, ", "), i)
	}
	return b.String()
}

// joinNote describes how each table-shaped argument's rows are bound into
// the call, in declaration order.
func joinNote(args []boundArg) string {
	var parts []string
	for _, a := range args {
		switch a.arg.Kind {
		case KindRelation:
			parts = append(parts, fmt.Sprintf("%s: join USING (row_id)", a.name))
		case KindTensor:
			parts = append(parts, fmt.Sprintf("%s: join USING (%s)", a.name, tensorDims(a.arg)))
		case KindMergeTensor:
			parts = append(parts, fmt.Sprintf("%s: no join clause", a.name))
		}
	}
	return strings.Join(parts, ", ")
}

func tensorDims(a Arg) string {
	if a.Table == nil {
		return "dim0"
	}
	var dims []string
	for _, col := range a.Table.Schema {
		if col.Name != "val" {
			dims = append(dims, col.Name)
		}
	}
	if len(dims) == 0 {
		return "dim0"
	}
	return strings.Join(dims, ", ")
}

// applySecureOpBundle names the per-operation companion tables a
// secure_transfer output splits into under SMPC: a zeroed template table
// plus the table for whichever op the output declares.
func applySecureOpBundle(result *Result, base types.TableName, op SecureOp) {
	tmpl := withResultSuffix(base, "tmpl")
	result.Template = &tmpl
	switch op {
	case SecureSum:
		t := withResultSuffix(base, string(SecureSum))
		result.SumOp = &t
	case SecureMin:
		t := withResultSuffix(base, string(SecureMin))
		result.MinOp = &t
	case SecureMax:
		t := withResultSuffix(base, string(SecureMax))
		result.MaxOp = &t
	}
}

func withResultSuffix(base types.TableName, suffix string) types.TableName {
	base.ResultID = base.ResultID + "_" + suffix
	return base
}
