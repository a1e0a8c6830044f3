package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/osmoslab/taxonet/pkg/ingest"
	"github.com/osmoslab/taxonet/pkg/tabular"
)

var (
	experimentFlag string
	networkFlag    string
	toolFlag       string
	taxonomyFlag   string
	samplesFlag    string
	abundanceFlag  string
	edgesFlag      string
	weightedFlag   bool

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Upsert taxa, samples and inferred networks into the graph store",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := storeClient(cmd)

			if err != nil {
				return err
			}

			ing := ingest.New(client)
			ctx := cmd.Context()

			if err := ing.UpsertExperiment(ctx, experimentFlag); err != nil {
				return err
			}

			if taxonomyFlag != "" {
				fh, err := os.Open(taxonomyFlag)

				if err != nil {
					return err
				}

				table, err := tabular.ReadTaxonomyTable(fh)
				fh.Close()

				if err != nil {
					return err
				}

				for taxon, taxonomy := range table {
					if err := ing.UpsertTaxon(ctx, taxon, taxonomy); err != nil {
						log.Warn("skipping taxon", "taxon", taxon, "error", err)
					}
				}
			}

			if samplesFlag != "" {
				fh, err := os.Open(samplesFlag)

				if err != nil {
					return err
				}

				table, err := tabular.ReadSampleTable(fh)
				fh.Close()

				if err != nil {
					return err
				}

				for sample, metadata := range table {
					if err := ing.UpsertSample(ctx, sample, experimentFlag, metadata); err != nil {
						log.Warn("skipping sample", "sample", sample, "error", err)
					}
				}
			}

			if abundanceFlag != "" {
				fh, err := os.Open(abundanceFlag)

				if err != nil {
					return err
				}

				table, err := tabular.ReadAbundanceTable(fh)
				fh.Close()

				if err != nil {
					return err
				}

				for taxon, counts := range table {
					for sample, count := range counts {
						if err := ing.UpsertObservation(ctx, taxon, sample, count); err != nil {
							log.Warn("skipping observation",
								"taxon", taxon, "sample", sample, "error", err)
						}
					}
				}
			}

			if edgesFlag != "" {
				fh, err := os.Open(edgesFlag)

				if err != nil {
					return err
				}

				edges, err := tabular.ReadEdgeList(fh)
				fh.Close()

				if err != nil {
					return err
				}

				if err := ing.UpsertNetwork(ctx, networkFlag, experimentFlag, toolFlag); err != nil {
					return err
				}

				if err := ing.UpsertAssociationSet(ctx, networkFlag, edges, weightedFlag); err != nil {
					return err
				}

				log.Info("ingested network", "network", networkFlag, "edges", len(edges))
			}

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&experimentFlag, "experiment", "e", "default", "Experiment the data belongs to")
	ingestCmd.Flags().StringVarP(&networkFlag, "network", "n", "", "Name of the inferred network")
	ingestCmd.Flags().StringVar(&toolFlag, "tool", "", "Inference tool that produced the network")
	ingestCmd.Flags().StringVar(&taxonomyFlag, "taxonomy", "", "Taxonomy table (TSV)")
	ingestCmd.Flags().StringVar(&samplesFlag, "samples", "", "Sample metadata table (TSV)")
	ingestCmd.Flags().StringVar(&abundanceFlag, "abundance", "", "Taxon-by-sample count matrix (TSV)")
	ingestCmd.Flags().StringVar(&edgesFlag, "edges", "", "Weighted edge list (TSV)")
	ingestCmd.Flags().BoolVarP(&weightedFlag, "weighted", "w", true, "Treat edge weights as part of association identity")
}
