package executor

import "github.com/fedmesh/fedmesh/pkg/udf"

// Target is where a step runs: fanned out to every local worker, or once
// on the global worker.
type Target string

const (
	TargetLocal  Target = "local"
	TargetGlobal Target = "global"
)

// SharePolicy is what happens to one step output immediately after the
// step that produced it returns.
type SharePolicy string

const (
	// ShareNone keeps the output on its producing side.
	ShareNone SharePolicy = "none"
	// ShareLocalToGlobal builds a merge table on the global worker out of
	// remote tables pointing at each local worker's output.
	ShareLocalToGlobal SharePolicy = "local_to_global"
	// ShareGlobalToLocal creates a remote table on every local worker
	// pointing at the global output.
	ShareGlobalToLocal SharePolicy = "global_to_local"
)

// Ref points at a previously produced step output. StepIndex -1 means the
// per-node dataset view the controller materialized before the plan ran,
// rather than an algorithm step's own output.
type Ref struct {
	StepIndex   int
	OutputIndex int
}

// InitialViewRef is the well-known reference to a LOCAL step's per-node
// dataset view, the plan's only non-step input source.
var InitialViewRef = Ref{StepIndex: -1, OutputIndex: 0}

// Input is one UDF argument: either a reference to a previously produced
// output or a literal value, tagged with the I/O kind the parameter it
// binds to declares.
type Input struct {
	Kind    udf.IOKind
	Ref     *Ref
	Literal any
}

// StepSpec is one step of an algorithm plan, naming its target, its
// registered UDF's positional and keyword inputs, and the sharing policy
// for each of its declared outputs (parallel to the UDF declaration's
// Outputs slice).
type StepSpec struct {
	Name      string
	Target    Target
	PosInputs []Input
	KwInputs  map[string]Input
	Share     []SharePolicy
	// UseSMPC opts a step with secure-transfer outputs into the SMPC
	// cluster path when the engine has SMPC enabled; ignored otherwise.
	UseSMPC bool
}

// Plan is one full algorithm instance: an ordered list of steps the
// executor interprets sequentially, with parallel fan-out within a LOCAL
// step.
type Plan struct {
	Algorithm    string
	DataModelKey string
	Datasets     []string
	Steps        []StepSpec
}
