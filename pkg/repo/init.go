package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// skeletonDirs 是一个 Git 兼容仓库的固定目录骨架
var skeletonDirs = []string{
	"branches",
	"hooks",
	"info",
	"objects",
	"objects/info",
	"objects/pack",
	"refs",
	"refs/heads",
	"refs/tags",
}

// defaultFiles 只在文件不存在时写入，重复初始化不会覆盖用户的修改
var defaultFiles = []struct {
	name    string
	content string
}{
	{"HEAD", "ref: refs/heads/master\n"},
	{"config", "[core]\n\trepositoryformatversion = 0\n\tfilemode = true\n\tbare = false\n"},
	{"description", "Unnamed repository; edit this file 'description' to name the repository.\n"},
}

// ObjectsDir 返回仓库的对象根目录
func ObjectsDir(repoPath string) string {
	return filepath.Join(repoPath, "objects")
}

// Init 在 repoPath 创建 (或补全) 仓库骨架
// 返回 true 表示这是一个全新的仓库
func Init(fsys afero.Fs, repoPath string) (bool, error) {
	fresh := true
	if exists, err := IsRepository(fsys, repoPath); err != nil {
		return false, err
	} else if exists {
		fresh = false
	}

	if err := fsys.MkdirAll(repoPath, 0755); err != nil {
		return false, fmt.Errorf("failed to create repo directory: %w", err)
	}

	for _, dir := range skeletonDirs {
		full := filepath.Join(repoPath, filepath.FromSlash(dir))
		if err := fsys.Mkdir(full, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
			return false, fmt.Errorf("failed to create %s: %w", path.Clean(dir), err)
		}
	}

	for _, f := range defaultFiles {
		full := filepath.Join(repoPath, f.name)
		if _, err := fsys.Stat(full); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		if err := afero.WriteFile(fsys, full, []byte(f.content), 0644); err != nil {
			return false, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	return fresh, nil
}

// IsRepository 检查 repoPath 是否已经有 objects 目录和 HEAD
func IsRepository(fsys afero.Fs, repoPath string) (bool, error) {
	for _, name := range []string{"objects", "HEAD"} {
		_, err := fsys.Stat(filepath.Join(repoPath, name))
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
