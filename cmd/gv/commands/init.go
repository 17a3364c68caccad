package commands

import (
	"fmt"

	"gitvault/pkg/app"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create an empty repository or reinitialize an existing one",
	Long: `Create the repository skeleton (objects/, refs/, HEAD, ...) at path,
or at --repo / repo.path when no path is given. Running it again only fills in what is missing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath := viper.GetString("repo.path")
		if len(args) == 1 {
			repoPath = args[0]
		}

		if err := closeApp(); err != nil {
			return err
		}
		var err error
		GV, err = app.NewAppAt(cmd.Context(), repoPath)
		if err != nil {
			return fmt.Errorf("failed to initialize gitvault: %w", err)
		}

		fresh, err := GV.Init(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if fresh {
			fmt.Fprintf(out, "Initialized empty repository in %s\n", GV.RepoPath)
		} else {
			fmt.Fprintf(out, "Reinitialized existing repository in %s\n", GV.RepoPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
