package ingester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gitvault/pkg/core"
	"gitvault/pkg/ignore"
	"gitvault/pkg/storage"
	"gitvault/pkg/types"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

var ErrIsDirectory = errors.New("path is a directory")

// Result 是单个文件的入库结果
type Result struct {
	Path string
	Hash types.Hash
	Size int64
	// Walked 表示该文件来自目录展开，而不是调用方显式给出
	Walked bool
}

// target 是展开后的单个待入库文件
type target struct {
	path   string
	walked bool
}

// Options 控制批量入库的行为
type Options struct {
	// Fs 为空时使用操作系统文件系统
	Fs afero.Fs
	// Root 是忽略规则所相对的工作区根目录，只作用于绝对路径；
	// 相对路径被视为已经相对于 Root
	Root    string
	Matcher *ignore.Matcher
	// Workers <= 0 时取 CPU 数
	Workers int
	// DryRun 只计算地址，不写入 Store
	DryRun bool
	// Recursive 允许目录参数
	Recursive bool
	Type      core.ObjectType
}

type Ingester struct {
	store storage.Store
	opts  Options
}

func NewIngester(store storage.Store, opts Options) *Ingester {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Type == "" {
		opts.Type = core.TypeBlob
	}
	return &Ingester{store: store, opts: opts}
}

// IngestFile 读取整个流并作为一个对象入库
// Loose Object 的头部需要提前知道长度，所以这里必须整体读入
func (ing *Ingester) IngestFile(ctx context.Context, reader io.Reader) (types.Hash, int64, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read input: %w", err)
	}

	obj := core.NewRaw(ing.opts.Type, data)
	if ing.opts.DryRun || ing.store == nil {
		sealed, err := core.Seal(obj)
		if err != nil {
			return "", 0, err
		}
		return sealed.ID(), int64(len(data)), nil
	}

	h, err := storage.Write(ctx, ing.store, obj)
	if err != nil {
		return "", 0, err
	}
	return h, int64(len(data)), nil
}

// IngestPaths 展开参数里的目录 (遵守忽略规则)，然后并发入库
// 结果顺序与展开后的文件顺序一致
func (ing *Ingester) IngestPaths(ctx context.Context, paths []string) ([]Result, error) {
	files, err := ing.expand(paths)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.opts.Workers)
	for i, file := range files {
		path := file.path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, size, err := ing.ingestPath(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to ingest %s: %w", path, err)
			}
			mu.Lock()
			results[i] = Result{Path: path, Hash: h, Size: size, Walked: file.walked}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (ing *Ingester) ingestPath(ctx context.Context, path string) (types.Hash, int64, error) {
	f, err := ing.opts.Fs.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return ing.IngestFile(ctx, f)
}

// expand 把参数列表展开成文件列表
// 显式给出的文件不受忽略规则影响，和 git add 一致
func (ing *Ingester) expand(paths []string) ([]target, error) {
	var files []target
	for _, p := range paths {
		info, err := ing.opts.Fs.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, target{path: p})
			continue
		}
		if !ing.opts.Recursive {
			return nil, fmt.Errorf("%s: %w", p, ErrIsDirectory)
		}

		err = afero.Walk(ing.opts.Fs, p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if ing.ignored(path) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.Mode().IsRegular() {
				files = append(files, target{path: path, walked: true})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk failed: %w", err)
		}
	}
	return files, nil
}

func (ing *Ingester) ignored(path string) bool {
	if ing.opts.Matcher == nil {
		return false
	}
	rel := filepath.Clean(path)
	if ing.opts.Root != "" && filepath.IsAbs(path) {
		r, err := filepath.Rel(ing.opts.Root, path)
		if err != nil {
			return false
		}
		rel = r
	}
	if rel == "." {
		return false
	}
	return ing.opts.Matcher.Matches(rel)
}
