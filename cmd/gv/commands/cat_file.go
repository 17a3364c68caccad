package commands

import (
	"errors"
	"fmt"

	"gitvault/pkg/exporter"
	"gitvault/pkg/storage"

	"github.com/spf13/cobra"
)

var (
	catType   bool
	catSize   bool
	catPretty bool
	catExists bool
)

var catFileCmd = &cobra.Command{
	Use:         "cat-file (-t | -s | -p | -e) <object>",
	Short:       "Provide content, type or size information for a stored object",
	Long:        `<object> is a full 40-character hash or an unambiguous prefix of at least 4 characters.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{needsRepo: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if n := countTrue(catType, catSize, catPretty, catExists); n != 1 {
			return fmt.Errorf("exactly one of -t, -s, -p, -e is required")
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		exp := exporter.NewExporter(GV.Store)

		hash, err := exp.Resolve(ctx, args[0])
		if catExists {
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return ErrSilentExit
				}
				return err
			}
			ok, err := GV.Store.Has(ctx, hash)
			if err != nil {
				return err
			}
			if !ok {
				return ErrSilentExit
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		switch {
		case catPretty:
			return exp.PrintObject(ctx, hash, out)
		default:
			info, err := storage.StatObject(ctx, GV.Store, hash)
			if err != nil {
				return err
			}
			if catType {
				fmt.Fprintln(out, info.Type)
			} else {
				fmt.Fprintln(out, info.Size)
			}
			return nil
		}
	},
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func init() {
	f := catFileCmd.Flags()
	f.BoolVarP(&catType, "type", "t", false, "show the object type")
	f.BoolVarP(&catSize, "size", "s", false, "show the object size")
	f.BoolVarP(&catPretty, "pretty", "p", false, "pretty-print the object content")
	f.BoolVarP(&catExists, "exists", "e", false, "exit with status 0 if the object exists")
	rootCmd.AddCommand(catFileCmd)
}
