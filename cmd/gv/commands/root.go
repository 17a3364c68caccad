package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gitvault/pkg/app"
	"gitvault/pkg/config"
	"gitvault/pkg/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrSilentExit 让进程以状态 1 退出但不打印任何东西 (cat-file -e)
var ErrSilentExit = errors.New("silent exit")

// needsRepo 标记需要已初始化仓库的命令
const needsRepo = "needs-repo"

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	GV *app.App
)

var rootCmd = &cobra.Command{
	Use:           "gv",
	Short:         "gitvault: a Git-compatible content-addressed object store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[needsRepo] == "" {
			return nil
		}
		return openApp(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

// openApp 校验仓库存在后组装 App
// 出错的命令不会走 PersistentPostRunE，所以这里先关掉上一次残留的实例
func openApp(ctx context.Context) error {
	if err := closeApp(); err != nil {
		return err
	}
	repoPath, err := app.ResolveRepoPath(viper.GetString("repo.path"))
	if err != nil {
		return err
	}
	if err := app.RequireRepository(repoPath); err != nil {
		return err
	}
	GV, err = app.NewAppAt(ctx, repoPath)
	if err != nil {
		return fmt.Errorf("failed to initialize gitvault: %w", err)
	}
	return nil
}

func closeApp() error {
	if GV == nil {
		return nil
	}
	err := GV.Close()
	GV = nil
	return err
}

// Execute 是入口
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, ./.gv/config.yaml or $HOME/.gv/config.yaml)")
	flags.String("repo", "", "repository directory (default ./.git)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	for key, name := range map[string]string{
		"repo.path": "repo",
		"log.level": "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量，然后安装 Logger
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
	if err := logging.Setup(viper.GetString("log.level"), viper.GetString("log.format")); err != nil {
		fmt.Fprintln(os.Stderr, "Logging error:", err)
		os.Exit(1)
	}
}
