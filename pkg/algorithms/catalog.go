package algorithms

import (
	"sort"

	"github.com/fedmesh/fedmesh/pkg/controller"
	"github.com/fedmesh/fedmesh/pkg/udf"
)

// NewRegistry returns a udf.Registry with every algorithm in this package
// registered. The executor looks UDFs up here by the FuncName it derives
// from a plan step's algorithm and step name.
func NewRegistry() *udf.Registry {
	reg := udf.NewRegistry()
	registerPairedTtest(reg)
	registerPCA(reg)
	return reg
}

// Catalog is a controller.Catalog that can also describe itself, for the
// facade's GET /algorithms listing.
type Catalog interface {
	controller.Catalog
	List() []controller.AlgorithmInfo
}

// catalog is the static, in-memory Catalog this package builds.
type catalog map[string]controller.AlgorithmSpec

func (c catalog) Lookup(name string) (controller.AlgorithmSpec, bool) {
	spec, ok := c[name]
	return spec, ok
}

// List returns every registered algorithm's Info, sorted by name, for the
// facade's GET /algorithms listing.
func (c catalog) List() []controller.AlgorithmInfo {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	infos := make([]controller.AlgorithmInfo, len(names))
	for i, name := range names {
		infos[i] = c[name].Info
	}
	return infos
}

// NewCatalog returns the Catalog covering every algorithm this package
// knows how to plan.
func NewCatalog() Catalog {
	return catalog{
		pairedTtestAlgorithm: pairedTtestSpec(),
		pcaAlgorithm:         pcaSpec(),
	}
}
