package algorithms

import (
	"testing"

	"github.com/fedmesh/fedmesh/pkg/udf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersEveryDeclaredUDF(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{
		udf.FuncName(pairedTtestAlgorithm, "local_paired"),
		udf.FuncName(pairedTtestAlgorithm, "global_paired"),
		udf.FuncName(pcaAlgorithm, "local_data_processing"),
		udf.FuncName(pcaAlgorithm, "local1"),
		udf.FuncName(pcaAlgorithm, "global1"),
		udf.FuncName(pcaAlgorithm, "local2"),
		udf.FuncName(pcaAlgorithm, "global2"),
	} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, "expected %s to be registered", name)
	}
}

func TestNewCatalogLooksUpBothAlgorithms(t *testing.T) {
	cat := NewCatalog()

	_, ok := cat.Lookup(pairedTtestAlgorithm)
	assert.True(t, ok)

	_, ok = cat.Lookup(pcaAlgorithm)
	assert.True(t, ok)

	_, ok = cat.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestNewCatalogListIsSortedByName(t *testing.T) {
	cat := NewCatalog()
	infos := cat.List()
	require.Len(t, infos, 2)
	assert.Equal(t, pairedTtestAlgorithm, infos[0].Name)
	assert.Equal(t, pcaAlgorithm, infos[1].Name)
	assert.NotEmpty(t, infos[0].Parameters)
}
