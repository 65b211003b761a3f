package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statsIndex string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Describe an index",
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := openIndex(statsIndex)
		if err != nil {
			return err
		}
		stats := index.Stats()

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Field", "Value")
		table.Append("ID", stats.ID)
		table.Append("Metric", stats.Metric)
		table.Append("Dimension", fmt.Sprintf("%d", stats.Dimension))
		table.Append("Records", fmt.Sprintf("%d", stats.Records))
		table.Append("Documents", fmt.Sprintf("%d", stats.Documents))
		table.Append("Model", stats.Model)
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsIndex, "index", "", "index directory (default from config)")
}
