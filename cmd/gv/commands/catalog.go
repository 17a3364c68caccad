package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"gitvault/pkg/exporter"
	"gitvault/pkg/types"

	"github.com/spf13/cobra"
)

var errNoCatalog = errors.New("catalog is not enabled (set catalog.driver)")

var (
	catalogType  string
	catalogLimit int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the object catalog",
}

var catalogLsCmd = &cobra.Command{
	Use:         "ls",
	Short:       "List cataloged objects",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{needsRepo: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if GV.Catalog == nil {
			return errNoCatalog
		}
		recs, err := GV.Catalog.List(cmd.Context(), catalogType, catalogLimit)
		if err != nil {
			return err
		}

		rows := make([]exporter.StatRow, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, exporter.StatRow{Hash: types.Hash(r.Hash), Type: r.Type, Size: r.Size})
		}
		return exporter.PrintTable(rows, cmd.OutOrStdout())
	},
}

var catalogStatsCmd = &cobra.Command{
	Use:         "stats",
	Short:       "Show object counts and sizes per type",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{needsRepo: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if GV.Catalog == nil {
			return errNoCatalog
		}
		stats, err := GV.Catalog.Stats(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "TYPE\tCOUNT\tSIZE\tSTORED\n")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Type, s.Count, exporter.FormatSize(s.TotalSize), exporter.FormatSize(s.StoredSize))
		}
		return tw.Flush()
	},
}

func init() {
	catalogLsCmd.Flags().StringVarP(&catalogType, "type", "t", "", "only list objects of this type")
	catalogLsCmd.Flags().IntVarP(&catalogLimit, "limit", "n", 0, "maximum number of rows (0 = all)")
	catalogCmd.AddCommand(catalogLsCmd, catalogStatsCmd)
	rootCmd.AddCommand(catalogCmd)
}
