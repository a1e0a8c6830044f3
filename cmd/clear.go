package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	forceFlag bool

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every node and relationship in the graph store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !forceFlag && !confirm("delete the entire graph?") {
				return nil
			}

			client, err := storeClient(cmd)

			if err != nil {
				return err
			}

			if err := client.ClearAll(cmd.Context()); err != nil {
				return err
			}

			log.Info("graph store cleared")
			return nil
		},
	}
)

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Skip the confirmation prompt")
}
