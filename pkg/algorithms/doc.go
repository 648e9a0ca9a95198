/*
Package algorithms is the catalog of concrete statistical algorithms the
controller (pkg/controller) can dispatch: each entry registers its UDFs
into a shared udf.Registry and builds an executor.Plan from a request's
parameters, without the controller or the executor knowing any algorithm
math.

The controller materializes one combined per-node dataset view (the
initial view) out of a request's x and y variables; every algorithm here
is therefore written against a single relation argument per local step,
not the separate per-variable-group views the math these algorithms are
grounded on sometimes uses. Where the source used two named relation
arguments, the columns are carried in one joined relation instead and
the UDF indexes into it by name.

paired_ttest runs a two-step local/global paired t-test. pca runs a
four- or five-step (with an optional data-transformation pre-step)
principal component analysis via its covariance matrix's eigendecomposition.
*/
package algorithms
