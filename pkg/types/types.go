// Package types defines the core data structures shared by every component
// of the federated analytics orchestrator: the node and data-model registry
// held by the landscape aggregator, the table-naming grammar shared by the
// executor and the cleaner, and the execution-context identifiers that tie
// one algorithm run's artifacts together across every worker that touches
// it.
package types

import (
	"fmt"
	"strings"
)

// NodeRole distinguishes the single aggregator worker from the data-holding
// workers in an algorithm execution.
type NodeRole string

const (
	RoleGlobal NodeRole = "GLOBAL"
	RoleLocal  NodeRole = "LOCAL"
)

// Node is an addressable worker, known to the controller only while the
// aggregator's most recent scan saw it.
type Node struct {
	ID            string
	Role          NodeRole
	QueueEndpoint string
	DBEndpoint    string
}

// DType is a worker-side SQL column type name. It is a string rather than
// an enum because the set of types a worker database supports is not fixed
// by this engine (table / transfer / state / secure-transfer contracts only
// care about the shape, not the exact dialect-specific type name).
type DType string

const (
	DTypeInt    DType = "int"
	DTypeReal   DType = "real"
	DTypeText   DType = "text"
	DTypeJSON   DType = "clob"
	DTypeBinary DType = "blob"
	DTypeBool   DType = "bool"
)

// CDE is a Common Data Element: one column definition within a data model.
type CDE struct {
	Code          string
	Label         string
	SQLType       DType
	IsCategorical bool
	// Enumerations maps an allowed value to its human label. Only
	// meaningful when IsCategorical is true. The CDE with Code "dataset"
	// is special: its Enumerations set is allowed to differ across nodes
	// and is unioned by the aggregator instead of compared for equality.
	Enumerations map[string]string
	Min          *float64
	Max          *float64
}

// Equal reports whether two CDEs are identical for compatibility purposes.
// The caller is responsible for skipping the Enumerations comparison for
// the "dataset" CDE, per the registry's special-casing rule.
func (c CDE) Equal(other CDE, compareEnumerations bool) bool {
	if c.Code != other.Code || c.Label != other.Label || c.SQLType != other.SQLType ||
		c.IsCategorical != other.IsCategorical {
		return false
	}
	if !floatPtrEqual(c.Min, other.Min) || !floatPtrEqual(c.Max, other.Max) {
		return false
	}
	if !compareEnumerations {
		return true
	}
	if len(c.Enumerations) != len(other.Enumerations) {
		return false
	}
	for k, v := range c.Enumerations {
		if ov, ok := other.Enumerations[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// DatasetCDECode is the reserved CDE code whose enumerations carry the set
// of dataset codes available for a data model, unioned across nodes.
const DatasetCDECode = "dataset"

// DataModel is a versioned schema: a name:version key plus its CDEs.
type DataModel struct {
	Name    string
	Version string
	CDEs    map[string]CDE
}

// Key returns the "name:version" identifier used throughout the registry.
func (d DataModel) Key() string {
	return fmt.Sprintf("%s:%s", d.Name, d.Version)
}

// ParseDataModelKey splits a "name:version" key back into its parts.
func ParseDataModelKey(key string) (name, version string, ok bool) {
	name, version, found := strings.Cut(key, ":")
	return name, version, found
}

// TableType is the worker-side table kind.
type TableType string

const (
	TableNormal TableType = "normal"
	TableView   TableType = "view"
	TableRemote TableType = "remote"
	TableMerge  TableType = "merge"
)

// ColumnInfo is one column of a table or view schema.
type ColumnInfo struct {
	Name  string
	DType DType
}

// Schema is an ordered list of columns.
type Schema []ColumnInfo

// TableName is the decoded 5-tuple behind the
// "{type}_{node_id}_{context_id}_{command_id}_{result_id}" table-name
// grammar. Segments are alphanumeric so the grammar round-trips exactly.
type TableName struct {
	Type      TableType
	NodeID    string
	ContextID string
	CommandID string
	ResultID  string
}

// String renders the table-name grammar.
func (t TableName) String() string {
	return strings.Join([]string{string(t.Type), t.NodeID, t.ContextID, t.CommandID, t.ResultID}, "_")
}

// ParseTableName recovers the 5-tuple from a rendered table name. It is the
// exact inverse of String, which is the round-trip property tested in
// §8 ("the table-name grammar is injective").
func ParseTableName(name string) (TableName, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 5 {
		return TableName{}, fmt.Errorf("table name %q does not have 5 underscore-separated segments", name)
	}
	tt := TableType(parts[0])
	switch tt {
	case TableNormal, TableView, TableRemote, TableMerge:
	default:
		return TableName{}, fmt.Errorf("table name %q has unknown type prefix %q", name, parts[0])
	}
	return TableName{
		Type:      tt,
		NodeID:    parts[1],
		ContextID: parts[2],
		CommandID: parts[3],
		ResultID:  parts[4],
	}, nil
}

// TableInfo is the handle an executor or RPC client passes around for one
// worker-side table: its fully-qualified name, its schema, and its kind.
type TableInfo struct {
	Name   TableName
	Schema Schema
	Type   TableType
}

// QualifiedName is the rendered table name string, as sent over RPC.
func (t TableInfo) QualifiedName() string { return t.Name.String() }

// RegistrySnapshot is the immutable value the landscape aggregator
// atomically swaps in on every cycle. Readers always see a consistent
// triple of (nodes, data models, dataset locations); see pkg/registry for
// the swap-pointer mechanics.
type RegistrySnapshot struct {
	// Nodes indexes every node the last scan saw, by id.
	Nodes map[string]Node
	// DataModels indexes every compatible data model, by "name:version".
	DataModels map[string]DataModel
	// DatasetLocations maps data-model-key -> dataset code -> owning node id.
	// A dataset present on more than one node is absent here (rejected as
	// duplicated).
	DatasetLocations map[string]map[string]string
	// DatasetLabels maps data-model-key -> dataset code -> human label.
	DatasetLabels map[string]map[string]string
}

// EmptySnapshot returns a snapshot with initialized, empty maps, used as
// both the aggregator's zero value and in tests.
func EmptySnapshot() RegistrySnapshot {
	return RegistrySnapshot{
		Nodes:            map[string]Node{},
		DataModels:       map[string]DataModel{},
		DatasetLocations: map[string]map[string]string{},
		DatasetLabels:    map[string]map[string]string{},
	}
}

// GlobalNode returns the unique node with role GLOBAL. Its absence is a
// fatal configuration error at the facade.
func (s RegistrySnapshot) GlobalNode() (Node, bool) {
	for _, n := range s.Nodes {
		if n.Role == RoleGlobal {
			return n, true
		}
	}
	return Node{}, false
}

// LocalNodes returns every node with role LOCAL.
func (s RegistrySnapshot) LocalNodes() []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.Role == RoleLocal {
			out = append(out, n)
		}
	}
	return out
}

// DataModelExists reports whether the data model is present in the snapshot.
func (s RegistrySnapshot) DataModelExists(dataModelKey string) bool {
	_, ok := s.DatasetLocations[dataModelKey]
	return ok
}

// NodeIDsWithAnyOfDatasets returns the distinct local node ids that hold at
// least one of the requested datasets for the given data model.
func (s RegistrySnapshot) NodeIDsWithAnyOfDatasets(dataModelKey string, datasets []string) []string {
	locations, ok := s.DatasetLocations[dataModelKey]
	if !ok {
		return nil
	}
	want := make(map[string]bool, len(datasets))
	for _, d := range datasets {
		want[d] = true
	}
	seen := map[string]bool{}
	var out []string
	for dataset, nodeID := range locations {
		if !want[dataset] {
			continue
		}
		if !seen[nodeID] {
			seen[nodeID] = true
			out = append(out, nodeID)
		}
	}
	return out
}

// NodeSpecificDatasets returns, of the wanted datasets, the ones located on
// the given node.
func (s RegistrySnapshot) NodeSpecificDatasets(nodeID, dataModelKey string, wanted []string) []string {
	locations, ok := s.DatasetLocations[dataModelKey]
	if !ok {
		return nil
	}
	want := make(map[string]bool, len(wanted))
	for _, d := range wanted {
		want[d] = true
	}
	var out []string
	for dataset, owner := range locations {
		if owner == nodeID && want[dataset] {
			out = append(out, dataset)
		}
	}
	return out
}

// AvailableDatasetsPerDataModel flattens the registry for the facade's
// GET /datasets view.
func (s RegistrySnapshot) AvailableDatasetsPerDataModel() map[string][]string {
	out := make(map[string][]string, len(s.DatasetLocations))
	for dataModelKey, locations := range s.DatasetLocations {
		datasets := make([]string, 0, len(locations))
		for dataset := range locations {
			datasets = append(datasets, dataset)
		}
		out[dataModelKey] = datasets
	}
	return out
}
