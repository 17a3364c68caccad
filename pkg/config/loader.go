package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀：storage.type -> GV_STORAGE_TYPE
const EnvPrefix = "GV"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：当前目录 -> ./.gv -> ~/.gv
		viper.AddConfigPath(".")
		viper.AddConfigPath(".gv")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".gv"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		// 只有默认值和环境变量也能工作
		slog.Debug("no config file found, using defaults and env")
		return nil
	}
	slog.Debug("using config file", slog.String("path", viper.ConfigFileUsed()))
	return nil
}

func setDefaults() {
	viper.SetDefault("repo.path", ".git")

	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.s3.region", "us-east-1")

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache.ttl", "24h")

	viper.SetDefault("catalog.driver", "")
	viper.SetDefault("catalog.dsn", "")

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
}
