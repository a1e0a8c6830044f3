package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osmoslab/taxonet/pkg/export"
	"github.com/osmoslab/taxonet/pkg/stores/s3"
)

var (
	exportNamesFlag []string
	outFlag         string
	uploadKeyFlag   string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Serialize networks or sets to GraphML",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := storeClient(cmd)

			if err != nil {
				return err
			}

			exp := export.New(client)
			graphs, err := exp.Subgraph(cmd.Context(), exportNamesFlag)

			if err != nil {
				return err
			}

			if outFlag != "" {
				fh, err := os.Create(outFlag)

				if err != nil {
					return err
				}

				defer fh.Close()

				if err := export.WriteGraphML(fh, graphs...); err != nil {
					return err
				}

				log.Info("wrote GraphML", "path", outFlag, "graphs", len(graphs))
			}

			if uploadKeyFlag != "" {
				conn, err := s3.NewConn(
					viper.GetString("export.endpoint"),
					viper.GetString("export.access_key"),
					viper.GetString("export.secret_key"),
					viper.GetBool("export.secure"),
				)

				if err != nil {
					return err
				}

				bucket := viper.GetString("export.bucket")

				if err := export.Upload(
					cmd.Context(), conn, bucket, uploadKeyFlag, graphs...,
				); err != nil {
					return err
				}

				log.Info("uploaded GraphML", "bucket", bucket, "key", uploadKeyFlag)
			}

			if outFlag == "" && uploadKeyFlag == "" {
				return export.WriteGraphML(os.Stdout, graphs...)
			}

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringSliceVarP(&exportNamesFlag, "names", "n", nil, "Networks or sets to export (default: all networks)")
	exportCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Write the GraphML document to this file")
	exportCmd.Flags().StringVar(&uploadKeyFlag, "upload", "", "Upload the GraphML document to the object store under this key")
}
