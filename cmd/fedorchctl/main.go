// Command fedorchctl is the CLI client for the controller's HTTP facade:
// it lists the algorithm catalog, lists available datasets, and submits
// algorithm runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fedmesh/fedmesh/pkg/client"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	addr    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fedorchctl",
	Short:   "Client for the federated analytics controller",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:8000", "controller facade address")
	rootCmd.AddCommand(algorithmsCmd, datasetsCmd, runCmd)
}

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the algorithms the controller can run",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(addr)
		infos, err := c.ListAlgorithms(context.Background())
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Println(info.Name)
			for _, p := range info.Parameters {
				required := ""
				if p.Required {
					required = " (required)"
				}
				fmt.Printf("  %s: %s%s\n", p.Name, p.Type, required)
			}
		}
		return nil
	},
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets available under each data model",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(addr)
		datasets, err := c.ListDatasets(context.Background())
		if err != nil {
			return err
		}
		for dataModel, ids := range datasets {
			fmt.Printf("%s: %s\n", dataModel, strings.Join(ids, ", "))
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <algorithm>",
	Short: "Run an algorithm against the requested data model and datasets",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunCmd,
}

func init() {
	runCmd.Flags().String("data-model", "", "data model key, e.g. dementia:0.1 (required)")
	runCmd.Flags().StringSlice("datasets", nil, "dataset codes to include (required)")
	runCmd.Flags().StringSlice("x", nil, "x (independent) variable names")
	runCmd.Flags().StringSlice("y", nil, "y (dependent) variable names")
	runCmd.Flags().StringSlice("param", nil, "algorithm parameter as name=value (JSON value, repeatable)")
	_ = runCmd.MarkFlagRequired("data-model")
	_ = runCmd.MarkFlagRequired("datasets")
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	dataModel, _ := cmd.Flags().GetString("data-model")
	datasets, _ := cmd.Flags().GetStringSlice("datasets")
	x, _ := cmd.Flags().GetStringSlice("x")
	y, _ := cmd.Flags().GetStringSlice("y")
	rawParams, _ := cmd.Flags().GetStringSlice("param")

	parameters, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	c := client.New(addr)
	result, err := c.RunAlgorithm(context.Background(), args[0], client.AlgorithmRequest{
		InputData: client.InputData{
			DataModel: dataModel,
			Datasets:  datasets,
			X:         x,
			Y:         y,
		},
		Parameters: parameters,
	})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

// parseParams turns "name=value" pairs into a parameters map, decoding
// each value as JSON so "0.05" becomes a float64 and "true" a bool; a
// value that isn't valid JSON is kept as a plain string.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		params[name] = decoded
	}
	return params, nil
}
