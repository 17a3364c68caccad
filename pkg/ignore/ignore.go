package ignore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// FileName 是工作区根目录下的忽略规则文件
const FileName = ".gvignore"

// defaultRules 始终生效，用户文件无法覆盖
var defaultRules = []string{
	// 仓库元数据，遍历进去会把对象库自己再哈希一遍
	".git",
	".gv",

	// 凭证
	"config.yaml",
	".env",

	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断工作区里的路径是否应被 hash-object -w 跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 从操作系统文件系统加载规则
func NewMatcher(rootPath string) (*Matcher, error) {
	return NewMatcherFs(afero.NewOsFs(), rootPath)
}

// NewMatcherFs 合并默认规则与 rootPath/.gvignore (若存在)
func NewMatcherFs(fsys afero.Fs, rootPath string) (*Matcher, error) {
	lines := append([]string(nil), defaultRules...)

	data, err := afero.ReadFile(fsys, filepath.Join(rootPath, FileName))
	switch {
	case err == nil:
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}, nil
}

// Matches 对相对于工作区根目录的路径返回 true 表示跳过
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
