package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gitvault/pkg/catalog"
	"gitvault/pkg/core"
	"gitvault/pkg/lockfile"
	"gitvault/pkg/repo"
	"gitvault/pkg/storage"
	"gitvault/pkg/storage/cache"
	"gitvault/pkg/storage/disk"
	"gitvault/pkg/storage/s3"
	"gitvault/pkg/types"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// LockName 是仓库级互斥锁文件
const LockName = "gitvault.lock"

var ErrNotRepository = errors.New("not a gitvault repository (run 'gv init')")

// App 是整个应用程序的依赖容器
type App struct {
	Store storage.Store
	// Catalog 为 nil 表示未启用目录
	Catalog  *catalog.Repository
	RepoPath string
	Lock     *lockfile.LockFile

	fs afero.Fs
}

// NewApp 按 Viper 配置组装各组件，不关心具体是哪个 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	return NewAppAt(ctx, viper.GetString("repo.path"))
}

// NewAppAt 与 NewApp 相同，但仓库路径由调用方给出 (gv init <path>)
func NewAppAt(ctx context.Context, path string) (*App, error) {
	repoPath, err := ResolveRepoPath(path)
	if err != nil {
		return nil, err
	}

	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	lock, err := lockfile.New(filepath.Join(repoPath, LockName))
	if err != nil {
		closeStore(store)
		return nil, err
	}

	a := &App{
		Store:    store,
		RepoPath: repoPath,
		Lock:     lock,
		fs:       afero.NewOsFs(),
	}
	if idx, ok := store.(*catalog.IndexedStore); ok {
		a.Catalog = idx.Repository()
	}
	return a, nil
}

// ResolveRepoPath 把相对路径解析到当前工作目录下
func ResolveRepoPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("repo path not set")
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// initStore 依配置选择后端，再按需套上缓存和目录
// 装饰顺序: backend -> redis cache -> catalog
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch storageType := viper.GetString("storage.type"); storageType {
	case "disk":
		store, err = disk.NewAdapter(repo.ObjectsDir(repoPath))
	case "s3":
		store, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			Prefix:          viper.GetString("storage.s3.prefix"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", storageType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if viper.GetBool("cache.enabled") {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL: viper.GetString("cache.redis_url"),
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init cache: %w", err)
		}
		store = cached
	}

	if driver := viper.GetString("catalog.driver"); driver != "" {
		db, err := openCatalog(ctx, afero.NewOsFs(), repoPath, driver, viper.GetString("catalog.dsn"))
		if err != nil {
			closeStore(store)
			return nil, fmt.Errorf("failed to init catalog: %w", err)
		}
		store = catalog.NewIndexedStore(store, catalog.NewRepository(db))
	}

	return store, nil
}

// openCatalog 打开目录库
// 默认的 SQLite 文件放在仓库目录里；非磁盘后端不会替我们建这个目录，所以先建好
func openCatalog(ctx context.Context, fsys afero.Fs, repoPath, driver, dsn string) (*catalog.DB, error) {
	if dsn == "" && driver == catalog.DriverSQLite {
		if err := fsys.MkdirAll(repoPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create repo directory: %w", err)
		}
		dsn = filepath.Join(repoPath, "catalog.db")
	}
	return catalog.NewDB(ctx, catalog.Config{Driver: driver, DSN: dsn})
}

func closeStore(s storage.Store) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// Init 创建 (或补全) 仓库骨架，持有仓库锁
func (a *App) Init(ctx context.Context) (bool, error) {
	if err := a.fs.MkdirAll(a.RepoPath, 0755); err != nil {
		return false, fmt.Errorf("failed to create repo directory: %w", err)
	}
	var fresh bool
	err := a.WithRepoLock(func() error {
		var err error
		fresh, err = repo.Init(a.fs, a.RepoPath)
		return err
	})
	return fresh, err
}

// RequireRepository 在组装 App 之前调用，避免在非仓库目录里建出 objects/
func RequireRepository(repoPath string) error {
	ok, err := repo.IsRepository(afero.NewOsFs(), repoPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", repoPath, ErrNotRepository)
	}
	return nil
}

// Store 把对象写入对象库
func Store[O core.Object](ctx context.Context, a *App, obj O) (types.Hash, error) {
	return storage.Write(ctx, a.Store, obj)
}

// WithRepoLock 在持有仓库锁期间执行 fn
func (a *App) WithRepoLock(fn func() error) error {
	return lockfile.Guard(a.Lock, fn)
}

// Close 释放缓存和目录连接
func (a *App) Close() error {
	if c, ok := a.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
