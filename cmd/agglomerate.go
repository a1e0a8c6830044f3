package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/osmoslab/taxonet/pkg/agglom"
)

var (
	rankFlag          string
	agglomWeightsFlag bool

	agglomerateCmd = &cobra.Command{
		Use:   "agglomerate",
		Short: "Merge associations that share taxonomic identity at a rank",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := storeClient(cmd)

			if err != nil {
				return err
			}

			agg := agglom.New(client)

			if err := agg.AgglomerateUpTo(
				cmd.Context(), rankFlag, agglomWeightsFlag,
			); err != nil {
				return err
			}

			log.Info("agglomeration complete", "rank", rankFlag)
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(agglomerateCmd)

	agglomerateCmd.Flags().StringVarP(&rankFlag, "rank", "r", "Genus", "Highest taxonomic rank to agglomerate to")
	agglomerateCmd.Flags().BoolVarP(&agglomWeightsFlag, "weight-sensitive", "w", false, "Only merge associations that carry equal weights")
}
