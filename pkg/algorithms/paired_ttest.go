package algorithms

import (
	"fmt"

	"github.com/fedmesh/fedmesh/pkg/controller"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/udf"
)

const pairedTtestAlgorithm = "paired_ttest"

// registerPairedTtest declares the two UDFs a paired t-test run is made of.
// local_paired folds each local worker's slice down to a secure_transfer of
// sufficient statistics; global_paired turns the merged statistics plus the
// request's alpha/alt_hypothesis into the final test result.
func registerPairedTtest(reg *udf.Registry) {
	reg.Register(udf.Declaration{
		Name:       udf.FuncName(pairedTtestAlgorithm, "local_paired"),
		Positional: []udf.ParamSpec{{Name: udf.KindRelation}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindSecureTransfer, SecureOp: udf.SecureSum}},
	})
	reg.Register(udf.Declaration{
		Name:       udf.FuncName(pairedTtestAlgorithm, "global_paired"),
		Positional: []udf.ParamSpec{{Name: udf.KindMergeTransfer}},
		Keyword: map[string]udf.ParamSpec{
			"alpha":       {Name: udf.KindLiteral},
			"alternative": {Name: udf.KindLiteral},
		},
		Outputs: []udf.ParamSpec{{Name: udf.KindTransfer}},
	})
}

// pairedTtestSpec builds the catalog entry. The per-node view the
// controller materializes carries x's columns followed by y's, in order,
// since local_paired reads both out of the one relation it receives rather
// than two separately-bound views.
func pairedTtestSpec() controller.AlgorithmSpec {
	return controller.AlgorithmSpec{
		Info: controller.AlgorithmInfo{
			Name: pairedTtestAlgorithm,
			Parameters: []controller.ParamInfo{
				{Name: "alpha", Type: "float", Required: true},
				{Name: "alt_hypothesis", Type: "string", Required: false},
			},
		},
		Columns: func(req controller.Request) ([]string, error) {
			if len(req.X) == 0 || len(req.Y) == 0 {
				return nil, ferrors.New(ferrors.BadUserInput, "paired_ttest requires at least one x and one y variable")
			}
			if len(req.X) != len(req.Y) {
				return nil, ferrors.New(ferrors.BadUserInput, "paired_ttest requires the same number of x and y variables")
			}
			return append(append([]string{}, req.X...), req.Y...), nil
		},
		BuildPlan: func(req controller.Request) (executor.Plan, error) {
			alpha, ok := req.Parameters["alpha"].(float64)
			if !ok {
				return executor.Plan{}, ferrors.New(ferrors.BadUserInput, `paired_ttest requires a numeric "alpha" parameter`)
			}
			alternative, _ := req.Parameters["alt_hypothesis"].(string)
			if alternative == "" {
				alternative = "two-sided"
			}
			switch alternative {
			case "greater", "less", "two-sided":
			default:
				return executor.Plan{}, ferrors.New(ferrors.BadUserInput, fmt.Sprintf("unknown alt_hypothesis %q", alternative))
			}

			localOut := executor.Ref{StepIndex: 0, OutputIndex: 0}
			return executor.Plan{
				Algorithm:    pairedTtestAlgorithm,
				DataModelKey: req.DataModelKey,
				Datasets:     req.Datasets,
				Steps: []executor.StepSpec{
					{
						Name:      "local_paired",
						Target:    executor.TargetLocal,
						PosInputs: []executor.Input{{Kind: udf.KindRelation, Ref: &executor.InitialViewRef}},
						Share:     []executor.SharePolicy{executor.ShareLocalToGlobal},
						UseSMPC:   true,
					},
					{
						Name:      "global_paired",
						Target:    executor.TargetGlobal,
						PosInputs: []executor.Input{{Kind: udf.KindMergeTransfer, Ref: &localOut}},
						KwInputs: map[string]executor.Input{
							"alpha":       {Kind: udf.KindLiteral, Literal: alpha},
							"alternative": {Kind: udf.KindLiteral, Literal: alternative},
						},
						Share: []executor.SharePolicy{executor.ShareNone},
					},
				},
			}, nil
		},
	}
}
