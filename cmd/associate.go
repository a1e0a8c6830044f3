package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osmoslab/taxonet/pkg/metastats"
)

var (
	propertiesFlag []string

	associateCmd = &cobra.Command{
		Use:   "associate",
		Short: "Test taxa against sample metadata and record significant links",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := storeClient(cmd)

			if err != nil {
				return err
			}

			assoc, err := metastats.New(client, metastats.Config{
				Alpha:     viper.GetFloat64("statistics.alpha"),
				NullValue: viper.GetString("statistics.null_value"),
			})

			if err != nil {
				return err
			}

			if err := assoc.AssociateSamples(cmd.Context(), propertiesFlag); err != nil {
				return err
			}

			log.Info("metadata association complete", "properties", propertiesFlag)
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(associateCmd)

	associateCmd.Flags().StringSliceVarP(&propertiesFlag, "properties", "p", nil, "Sample property names to test")
}
