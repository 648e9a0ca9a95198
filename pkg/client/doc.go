/*
Package client is a thin Go client for the controller's HTTP facade
(pkg/api): it wraps net/http with the JSON request and response shapes the
facade expects and returns, so command-line and programmatic callers don't
hand-roll them.

# Usage

	c := client.New("localhost:8000")

	result, err := c.RunAlgorithm(ctx, "paired_ttest", client.AlgorithmRequest{
		InputData: client.InputData{
			DataModel: "dementia:0.1",
			Datasets:  []string{"ds1", "ds2"},
			X:         []string{"lefthippocampus"},
			Y:         []string{"righthippocampus"},
		},
		Parameters: map[string]any{"alpha": 0.05, "alt_hypothesis": "two-sided"},
	})

	algorithms, err := c.ListAlgorithms(ctx)
	datasets, err := c.ListDatasets(ctx)

# Errors

A non-2xx response is returned as an error carrying the facade's {"error":
"..."} message and the HTTP status code, so a caller can distinguish a 460
(bad user input) from a 500 (everything else) without parsing the message
text; see pkg/ferrors for the kinds behind those codes.

Every method takes a context and applies its own default timeout via
context.WithTimeout if the caller's context has no earlier deadline —
RunAlgorithm's is long, since an algorithm run can take minutes across a
large worker fleet; the catalog and dataset listings use a short one.
*/
package client
