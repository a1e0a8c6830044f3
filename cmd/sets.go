package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/osmoslab/taxonet/pkg/graph"
	"github.com/osmoslab/taxonet/pkg/setops"
)

var (
	setNetworksFlag  []string
	weightSensitive  bool
	persistFlag      bool
	differenceTarget string

	setsCmd = &cobra.Command{
		Use:   "sets",
		Short: "Apply set algebra across inferred networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	unionCmd = &cobra.Command{
		Use:   "union",
		Short: "All associations in any of the given networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetOp(cmd, "Union", setNetworksFlag, func(eng *setops.Engine) ([]graph.Edge, error) {
				return eng.Union(cmd.Context(), setNetworksFlag)
			})
		},
	}

	intersectionCmd = &cobra.Command{
		Use:   "intersection",
		Short: "Associations present in every given network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetOp(cmd, "Intersection", setNetworksFlag, func(eng *setops.Engine) ([]graph.Edge, error) {
				return eng.Intersection(cmd.Context(), setNetworksFlag, weightSensitive)
			})
		},
	}

	differenceCmd = &cobra.Command{
		Use:   "difference",
		Short: "Associations present in exactly one network",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scope []string

			if differenceTarget != "" {
				scope = []string{differenceTarget}
			}

			return runSetOp(cmd, "Difference", scope, func(eng *setops.Engine) ([]graph.Edge, error) {
				return eng.Difference(cmd.Context(), differenceTarget, weightSensitive)
			})
		},
	}
)

func runSetOp(
	cmd *cobra.Command,
	operation string,
	networks []string,
	run func(*setops.Engine) ([]graph.Edge, error),
) error {
	client, err := storeClient(cmd)

	if err != nil {
		return err
	}

	eng := setops.New(client)
	edges, err := run(eng)

	if err != nil {
		return err
	}

	for _, edge := range edges {
		fmt.Printf("%s\t%s\t%v\t%v\n", edge.Source, edge.Target, edge.Networks, edge.Weights)
	}

	if persistFlag {
		name, err := eng.Persist(cmd.Context(), operation, networks, edges)

		if err != nil {
			return err
		}

		log.Info("persisted set", "set", name, "edges", len(edges))
	}

	return nil
}

func init() {
	rootCmd.AddCommand(setsCmd)
	setsCmd.AddCommand(unionCmd)
	setsCmd.AddCommand(intersectionCmd)
	setsCmd.AddCommand(differenceCmd)

	setsCmd.PersistentFlags().StringSliceVarP(&setNetworksFlag, "networks", "n", nil, "Networks to operate on (default: all)")
	setsCmd.PersistentFlags().BoolVarP(&weightSensitive, "weight-sensitive", "w", false, "Treat same-pair associations with different weights as distinct")
	setsCmd.PersistentFlags().BoolVar(&persistFlag, "persist", false, "Persist the result as a Set node")
	differenceCmd.Flags().StringVar(&differenceTarget, "restrict", "", "Restrict the difference to one network")
}
