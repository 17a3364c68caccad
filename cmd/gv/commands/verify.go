package commands

import (
	"fmt"
	"log/slog"

	"gitvault/pkg/exporter"
	"gitvault/pkg/storage"
	"gitvault/pkg/types"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [object...]",
	Short: "Re-hash stored objects and check them against their addresses",
	Long: `Without arguments every object in the repository is checked
(requires a backend that can list objects, such as the local disk).`,
	Annotations: map[string]string{needsRepo: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var hashes []types.Hash
		if len(args) == 0 {
			err := storage.Walk(ctx, GV.Store, func(h types.Hash) error {
				hashes = append(hashes, h)
				return nil
			})
			if err != nil {
				return err
			}
		} else {
			exp := exporter.NewExporter(GV.Store)
			for _, a := range args {
				h, err := exp.Resolve(ctx, a)
				if err != nil {
					return fmt.Errorf("%s: %w", a, err)
				}
				hashes = append(hashes, h)
			}
		}

		var result *multierror.Error
		for _, h := range hashes {
			if err := storage.VerifyObject(ctx, GV.Store, h); err != nil {
				slog.Debug("verification failed", slog.String("hash", h.String()), slog.String("err", err.Error()))
				fmt.Fprintf(out, "bad %s: %v\n", h, err)
				result = multierror.Append(result, fmt.Errorf("%s: %w", h, err))
				continue
			}
			fmt.Fprintf(out, "ok  %s\n", h)
		}

		if err := result.ErrorOrNil(); err != nil {
			return fmt.Errorf("%d of %d objects failed verification: %w", len(result.Errors), len(hashes), err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
