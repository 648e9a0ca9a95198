package algorithms

import (
	"testing"

	"github.com/fedmesh/fedmesh/pkg/controller"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/udf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCAColumnsRequiresAtLeastOneVariable(t *testing.T) {
	spec := pcaSpec()
	_, err := spec.Columns(controller.Request{})
	require.Error(t, err)
	assert.Equal(t, ferrors.BadUserInput, ferrors.KindOf(err))
}

func TestPCAColumnsReturnsYVariables(t *testing.T) {
	spec := pcaSpec()
	cols, err := spec.Columns(controller.Request{Y: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cols)
}

func TestPCABuildPlanWithoutTransformationHasFourSteps(t *testing.T) {
	spec := pcaSpec()
	plan, err := spec.BuildPlan(controller.Request{DataModelKey: "dm:0.1", Parameters: map[string]any{}})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 4)

	names := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"local1", "global1", "local2", "global2"}, names)

	local1 := plan.Steps[0]
	assert.Equal(t, executor.InitialViewRef, *local1.PosInputs[0].Ref)

	local2 := plan.Steps[2]
	require.Len(t, local2.PosInputs, 2)
	assert.Equal(t, executor.InitialViewRef, *local2.PosInputs[0].Ref)
	assert.Equal(t, udf.KindTransfer, local2.PosInputs[1].Kind)
	assert.Equal(t, executor.Ref{StepIndex: 1, OutputIndex: 1}, *local2.PosInputs[1].Ref)

	global2 := plan.Steps[3]
	require.Len(t, global2.PosInputs, 2)
	assert.Equal(t, udf.KindState, global2.PosInputs[1].Kind)
	assert.Equal(t, executor.Ref{StepIndex: 1, OutputIndex: 0}, *global2.PosInputs[1].Ref)
}

func TestPCABuildPlanWithTransformationPrependsStepAndRetargetsRefs(t *testing.T) {
	spec := pcaSpec()
	plan, err := spec.BuildPlan(controller.Request{
		DataModelKey: "dm:0.1",
		Parameters:   map[string]any{"data_transformation": map[string]any{"log": []string{"age"}}},
	})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 5)
	assert.Equal(t, "local_data_processing", plan.Steps[0].Name)

	local1 := plan.Steps[1]
	assert.Equal(t, executor.Ref{StepIndex: 0, OutputIndex: 0}, *local1.PosInputs[0].Ref)

	local2 := plan.Steps[3]
	assert.Equal(t, executor.Ref{StepIndex: 0, OutputIndex: 0}, *local2.PosInputs[0].Ref)
	assert.Equal(t, executor.Ref{StepIndex: 2, OutputIndex: 1}, *local2.PosInputs[1].Ref)

	global2 := plan.Steps[4]
	assert.Equal(t, executor.Ref{StepIndex: 3, OutputIndex: 0}, *global2.PosInputs[0].Ref)
	assert.Equal(t, executor.Ref{StepIndex: 2, OutputIndex: 0}, *global2.PosInputs[1].Ref)
}
