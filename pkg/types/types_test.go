package types

import "testing"

func TestTableNameRoundTrip(t *testing.T) {
	cases := []TableName{
		{Type: TableNormal, NodeID: "node0", ContextID: "ctx1", CommandID: "cmd2", ResultID: "res0"},
		{Type: TableView, NodeID: "global", ContextID: "ctx1", CommandID: "cmd2", ResultID: "res1"},
		{Type: TableRemote, NodeID: "node1", ContextID: "ctx1", CommandID: "cmd3", ResultID: "res0"},
		{Type: TableMerge, NodeID: "global", ContextID: "ctx1", CommandID: "cmd3", ResultID: "res0"},
	}
	for _, tn := range cases {
		rendered := tn.String()
		parsed, err := ParseTableName(rendered)
		if err != nil {
			t.Fatalf("ParseTableName(%q): %v", rendered, err)
		}
		if parsed != tn {
			t.Errorf("round trip mismatch: got %+v, want %+v", parsed, tn)
		}
	}
}

func TestParseTableNameRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"normal_node0_ctx1_cmd2",          // too few segments
		"bogus_node0_ctx1_cmd2_res0",      // unknown type prefix
		"normal_node0_ctx1_cmd2_res0_res1", // too many segments
	} {
		if _, err := ParseTableName(bad); err == nil {
			t.Errorf("ParseTableName(%q): expected error, got nil", bad)
		}
	}
}

func TestTableNameGrammarIsInjective(t *testing.T) {
	a := TableName{Type: TableNormal, NodeID: "n0", ContextID: "c1", CommandID: "cmd1", ResultID: "r0"}
	b := TableName{Type: TableNormal, NodeID: "n0", ContextID: "c1", CommandID: "cmd2", ResultID: "r0"}
	if a.String() == b.String() {
		t.Fatal("two distinct 5-tuples rendered the same name")
	}
}

func TestCDEEqualDatasetEnumerationsIgnored(t *testing.T) {
	a := CDE{Code: DatasetCDECode, Label: "dataset", SQLType: DTypeText, Enumerations: map[string]string{"ds1": "Dataset 1"}}
	b := CDE{Code: DatasetCDECode, Label: "dataset", SQLType: DTypeText, Enumerations: map[string]string{"ds2": "Dataset 2"}}
	if !a.Equal(b, false) {
		t.Error("dataset CDEs should compare equal when enumerations are skipped")
	}
	if a.Equal(b, true) {
		t.Error("dataset CDEs with different enumerations should not compare equal when enumerations are compared")
	}
}

func TestRegistrySnapshotNodeIDsWithAnyOfDatasets(t *testing.T) {
	snap := RegistrySnapshot{
		DatasetLocations: map[string]map[string]string{
			"dm:0.1": {"ds1": "node0", "ds2": "node1", "ds3": "node0"},
		},
	}
	ids := snap.NodeIDsWithAnyOfDatasets("dm:0.1", []string{"ds1", "ds2"})
	if len(ids) != 2 {
		t.Fatalf("expected 2 node ids, got %v", ids)
	}
}
