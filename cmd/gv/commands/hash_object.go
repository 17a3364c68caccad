package commands

import (
	"fmt"
	"os"

	"gitvault/pkg/core"
	"gitvault/pkg/ignore"
	"gitvault/pkg/ingester"

	"github.com/spf13/cobra"
)

var (
	hashWrite bool
	hashType  string
	hashStdin bool
	hashJobs  int
)

var hashObjectCmd = &cobra.Command{
	Use:   "hash-object [-w] [-t type] [--stdin] <path>...",
	Short: "Compute object IDs and optionally store the objects",
	Long: `Compute the object ID of each file (or stdin) using the Git loose-object format.
With -w the objects are written to the repository; directories are walked
in parallel and paths matched by .gvignore are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := core.ParseObjectType(hashType)
		if err != nil {
			return err
		}
		if !hashStdin && len(args) == 0 {
			return fmt.Errorf("no paths given (use --stdin to read from standard input)")
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		opts := ingester.Options{
			Type:      typ,
			DryRun:    !hashWrite,
			Recursive: hashWrite,
			Workers:   hashJobs,
		}
		if hashWrite {
			if err := openApp(ctx); err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			matcher, err := ignore.NewMatcher(wd)
			if err != nil {
				return err
			}
			opts.Root = wd
			opts.Matcher = matcher
		}

		run := func() error {
			var ing *ingester.Ingester
			if hashWrite {
				ing = ingester.NewIngester(GV.Store, opts)
			} else {
				ing = ingester.NewIngester(nil, opts)
			}

			if hashStdin {
				h, _, err := ing.IngestFile(ctx, cmd.InOrStdin())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, h)
			}

			if len(args) == 0 {
				return nil
			}
			results, err := ing.IngestPaths(ctx, args)
			if err != nil {
				return err
			}
			// 只有单个显式文件时输出裸哈希，其余情况带上路径
			bare := len(args) == 1 && len(results) == 1 && !results[0].Walked
			for _, r := range results {
				if !bare {
					fmt.Fprintf(out, "%s\t%s\n", r.Hash, r.Path)
				} else {
					fmt.Fprintln(out, r.Hash)
				}
			}
			return nil
		}

		if !hashWrite {
			return run()
		}
		return GV.WithRepoLock(run)
	},
}

func init() {
	f := hashObjectCmd.Flags()
	f.BoolVarP(&hashWrite, "write", "w", false, "write the objects into the repository")
	f.StringVarP(&hashType, "type", "t", "blob", "object type (blob, tree, commit, tag)")
	f.BoolVar(&hashStdin, "stdin", false, "read the object from standard input")
	f.IntVarP(&hashJobs, "jobs", "j", 0, "parallel workers for -w (default: number of CPUs)")
	rootCmd.AddCommand(hashObjectCmd)
}
