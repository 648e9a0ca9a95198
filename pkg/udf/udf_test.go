package udf

import (
	"testing"

	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/types"
)

func relationTable(cols ...types.ColumnInfo) *types.TableInfo {
	return &types.TableInfo{Schema: types.Schema(cols)}
}

func TestBindArityMismatch(t *testing.T) {
	decl := Declaration{
		Name:       "udf_example",
		Positional: []ParamSpec{{Name: KindRelation}, {Name: KindRelation}},
	}
	_, err := Bind(decl, []Arg{{Kind: KindRelation, Table: relationTable()}}, nil)
	if ferrors.KindOf(err) != ferrors.UDFContractViolation {
		t.Fatalf("expected UDFContractViolation, got %v", err)
	}
}

func TestBindKindMismatch(t *testing.T) {
	decl := Declaration{
		Name:       "udf_example",
		Positional: []ParamSpec{{Name: KindRelation}},
	}
	_, err := Bind(decl, []Arg{{Kind: KindTensor, Table: relationTable()}}, nil)
	if ferrors.KindOf(err) != ferrors.UDFContractViolation {
		t.Fatalf("expected UDFContractViolation, got %v", err)
	}
}

func TestBindMissingKeyword(t *testing.T) {
	decl := Declaration{
		Name:    "udf_example",
		Keyword: map[string]ParamSpec{"x": {Name: KindRelation}},
	}
	_, err := Bind(decl, nil, nil)
	if ferrors.KindOf(err) != ferrors.UDFContractViolation {
		t.Fatalf("expected UDFContractViolation for missing keyword, got %v", err)
	}
}

func TestBindUnexpectedKeyword(t *testing.T) {
	decl := Declaration{Name: "udf_example"}
	_, err := Bind(decl, nil, map[string]Arg{"y": {Kind: KindRelation, Table: relationTable()}})
	if ferrors.KindOf(err) != ferrors.UDFContractViolation {
		t.Fatalf("expected UDFContractViolation for unexpected keyword, got %v", err)
	}
}

func TestBindSuccess(t *testing.T) {
	decl := Declaration{
		Name:       "udf_example",
		Positional: []ParamSpec{{Name: KindRelation}},
		Outputs:    []ParamSpec{{Name: KindSecureTransfer, SecureOp: SecureSum}},
	}
	call, err := Bind(decl, []Arg{{Kind: KindRelation, Table: relationTable(types.ColumnInfo{Name: "x", DType: types.DTypeReal})}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(call.PosArgs) != 1 {
		t.Fatalf("expected 1 bound positional arg, got %d", len(call.PosArgs))
	}
}

func TestResolveOutputSchemasInfersFromMatchingInput(t *testing.T) {
	input := relationTable(types.ColumnInfo{Name: "a", DType: types.DTypeReal})
	decl := Declaration{
		Positional: []ParamSpec{{Name: KindRelation}},
		Outputs:    []ParamSpec{{Name: KindRelation}},
	}
	call := Call{Decl: decl, PosArgs: []Arg{{Kind: KindRelation, Table: input}}}
	schemas := ResolveOutputSchemas(call)
	if schemas[0] == nil {
		t.Fatal("expected inferred schema, got nil (deferred to worker)")
	}
	if len(*schemas[0]) != 1 || (*schemas[0])[0].Name != "a" {
		t.Errorf("unexpected inferred schema: %+v", *schemas[0])
	}
}

func TestResolveOutputSchemasDefersWhenNoMatch(t *testing.T) {
	decl := Declaration{
		Outputs: []ParamSpec{{Name: KindSecureTransfer}},
	}
	schemas := ResolveOutputSchemas(Call{Decl: decl})
	if schemas[0] != nil {
		t.Error("expected nil (deferred to worker) for an output kind with no matching input")
	}
}

func TestOutputTableNamesAreDistinct(t *testing.T) {
	names := OutputTableNames("node0", "ctx1", "cmd2", []ParamSpec{{Name: KindRelation}, {Name: KindSecureTransfer}})
	if len(names) != 2 || names[0].ResultID == names[1].ResultID {
		t.Fatalf("expected two distinct result ids, got %+v", names)
	}
}
