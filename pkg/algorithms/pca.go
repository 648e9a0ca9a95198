package algorithms

import (
	"github.com/fedmesh/fedmesh/pkg/controller"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/udf"
)

const pcaAlgorithm = "pca"

// registerPCA declares PCA's five UDFs. local_data_processing is optional:
// it only runs when the request supplies a data_transformation parameter,
// in which case every later step reads its output instead of the raw
// initial view. A non-positive value under a "log" transformation, or a
// zero-variance column under "standardize", fails the local worker that
// hits it; the RPC layer classifies that failure as bad user input rather
// than a remote-internal error.
func registerPCA(reg *udf.Registry) {
	reg.Register(udf.Declaration{
		Name:       udf.FuncName(pcaAlgorithm, "local_data_processing"),
		Positional: []udf.ParamSpec{{Name: udf.KindRelation}},
		Keyword:    map[string]udf.ParamSpec{"data_transformation": {Name: udf.KindLiteral}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindRelation}},
	})
	reg.Register(udf.Declaration{
		Name:       udf.FuncName(pcaAlgorithm, "local1"),
		Positional: []udf.ParamSpec{{Name: udf.KindRelation}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindSecureTransfer, SecureOp: udf.SecureSum}},
	})
	reg.Register(udf.Declaration{
		Name:       udf.FuncName(pcaAlgorithm, "global1"),
		Positional: []udf.ParamSpec{{Name: udf.KindMergeTransfer}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindState}, {Name: udf.KindTransfer}},
	})
	reg.Register(udf.Declaration{
		Name:       udf.FuncName(pcaAlgorithm, "local2"),
		Positional: []udf.ParamSpec{{Name: udf.KindRelation}, {Name: udf.KindTransfer}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindSecureTransfer, SecureOp: udf.SecureSum}},
	})
	reg.Register(udf.Declaration{
		Name:       udf.FuncName(pcaAlgorithm, "global2"),
		Positional: []udf.ParamSpec{{Name: udf.KindMergeTransfer}, {Name: udf.KindState}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindTransfer}},
	})
}

// pcaSpec builds the catalog entry. Only the y variable group feeds the
// per-node view; PCA has no x/dependent split.
func pcaSpec() controller.AlgorithmSpec {
	return controller.AlgorithmSpec{
		Info: controller.AlgorithmInfo{
			Name: pcaAlgorithm,
			Parameters: []controller.ParamInfo{
				{Name: "data_transformation", Type: "object", Required: false},
			},
		},
		Columns: func(req controller.Request) ([]string, error) {
			if len(req.Y) == 0 {
				return nil, ferrors.New(ferrors.BadUserInput, "pca requires at least one variable")
			}
			return append([]string{}, req.Y...), nil
		},
		BuildPlan: func(req controller.Request) (executor.Plan, error) {
			steps := make([]executor.StepSpec, 0, 5)
			xRef := executor.InitialViewRef

			if dataTransformation, ok := req.Parameters["data_transformation"]; ok {
				steps = append(steps, executor.StepSpec{
					Name:      "local_data_processing",
					Target:    executor.TargetLocal,
					PosInputs: []executor.Input{{Kind: udf.KindRelation, Ref: &executor.InitialViewRef}},
					KwInputs: map[string]executor.Input{
						"data_transformation": {Kind: udf.KindLiteral, Literal: dataTransformation},
					},
					Share: []executor.SharePolicy{executor.ShareNone},
				})
				xRef = executor.Ref{StepIndex: 0, OutputIndex: 0}
			}

			local1Idx := len(steps)
			steps = append(steps, executor.StepSpec{
				Name:      "local1",
				Target:    executor.TargetLocal,
				PosInputs: []executor.Input{{Kind: udf.KindRelation, Ref: &xRef}},
				Share:     []executor.SharePolicy{executor.ShareLocalToGlobal},
				UseSMPC:   true,
			})

			global1Idx := len(steps)
			steps = append(steps, executor.StepSpec{
				Name:      "global1",
				Target:    executor.TargetGlobal,
				PosInputs: []executor.Input{{Kind: udf.KindMergeTransfer, Ref: &executor.Ref{StepIndex: local1Idx, OutputIndex: 0}}},
				Share:     []executor.SharePolicy{executor.ShareNone, executor.ShareGlobalToLocal},
			})

			local2Idx := len(steps)
			steps = append(steps, executor.StepSpec{
				Name:   "local2",
				Target: executor.TargetLocal,
				PosInputs: []executor.Input{
					{Kind: udf.KindRelation, Ref: &xRef},
					{Kind: udf.KindTransfer, Ref: &executor.Ref{StepIndex: global1Idx, OutputIndex: 1}},
				},
				Share:   []executor.SharePolicy{executor.ShareLocalToGlobal},
				UseSMPC: true,
			})

			steps = append(steps, executor.StepSpec{
				Name:   "global2",
				Target: executor.TargetGlobal,
				PosInputs: []executor.Input{
					{Kind: udf.KindMergeTransfer, Ref: &executor.Ref{StepIndex: local2Idx, OutputIndex: 0}},
					{Kind: udf.KindState, Ref: &executor.Ref{StepIndex: global1Idx, OutputIndex: 0}},
				},
				Share: []executor.SharePolicy{executor.ShareNone},
			})

			return executor.Plan{
				Algorithm:    pcaAlgorithm,
				DataModelKey: req.DataModelKey,
				Datasets:     req.Datasets,
				Steps:        steps,
			}, nil
		},
	}
}
