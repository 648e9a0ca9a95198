/*
Package types defines the data model shared by every component of the
federated analytics orchestrator.

# Registry

A Node is a worker the landscape aggregator last saw responding, tagged
GLOBAL or LOCAL. A DataModel is a versioned schema (name:version) made up of
CDEs (Common Data Elements); two nodes' definitions of a DataModel must be
identical except for the "dataset" CDE's enumerations, which the aggregator
unions across nodes instead. A RegistrySnapshot is the immutable
(nodes, data models, dataset locations) triple the aggregator swaps in
atomically on every scan cycle; see pkg/registry for how it is produced and
pkg/controller for how it is consumed.

# Tables

A TableInfo names a worker-side table using the grammar
"{type}_{node_id}_{context_id}_{command_id}_{result_id}", so any party can
construct, find, or drop it without coordinating with the table's creator.
TableName/ParseTableName implement that grammar and its exact inverse.
*/
package types
