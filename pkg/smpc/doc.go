/*
Package smpc is the executor's hook into the external secure multi-party
computation cluster used for the §4.4.2 SMPC path: a local step's
secure-transfer output is split into a template plus one table per declared
operation (sum/min/max); LoadData hands the per-local operation tables for
one operation to the cluster and PollResult waits for its aggregated result.

The cluster itself is out of scope; this package only speaks its job API.
*/
package smpc
