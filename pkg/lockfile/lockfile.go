// Package lockfile 提供跨进程的互斥锁，只依赖文件系统的原子“不存在才创建”语义，
// 不使用任何 OS 级别的 advisory lock。
//
// 锁令牌就是一个空文件：存在即被持有，删除即被释放。
// 只有所有参与者都通过同一个路径、同一套协议加锁时才能互斥。
//
// 注意 (Liveness)：持有者如果在 Unlock 之前崩溃，锁文件会一直留在磁盘上，
// 其他进程将永远无法获取它，直到有人手动删除。这里不做任何过期或“抢锁”处理。
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

var (
	// ErrRelativePath 锁路径必须是绝对路径
	// 长期运行的进程可能切换工作目录，相对路径会悄悄指向错误的文件
	ErrRelativePath = fmt.Errorf("lock path must be absolute: %w", os.ErrInvalid)

	// ErrLocked 锁被其他持有者占用
	ErrLocked = errors.New("lock is held by another owner")
)

// Locker 是互斥锁的抽象
type Locker interface {
	// Lock 尝试加锁
	// 返回 true 表示本次新获取了锁；
	// 返回 false 表示本实例早已持有，或者锁被别人持有 (都不是错误)；
	// 其他意外情况返回 error。
	Lock() (bool, error)

	// Unlock 尝试释放锁
	// 返回 true 表示成功释放；false 表示本来就没有持有。
	Unlock() (bool, error)

	// IsLocked 返回本实例是否认为自己持有锁
	IsLocked() bool
}

// LockFile 是基于文件的 Locker
// 它唯一的本地状态就是 “我是否持有锁” 这个标记，不是并发安全的：
// 每个 goroutine 应该使用自己的实例。
type LockFile struct {
	fs     afero.Fs
	path   string
	locked bool
}

var _ Locker = (*LockFile)(nil)

// New 在 OS 文件系统上创建一个 LockFile
func New(path string) (*LockFile, error) {
	return NewWithFs(afero.NewOsFs(), path)
}

// NewWithFs 允许注入 afero.Fs
func NewWithFs(fsys afero.Fs, path string) (*LockFile, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%w: %q", ErrRelativePath, path)
	}
	return &LockFile{fs: fsys, path: filepath.Clean(path)}, nil
}

func (l *LockFile) Path() string { return l.path }

func (l *LockFile) IsLocked() bool { return l.locked }

func (l *LockFile) Lock() (bool, error) {
	if l.locked {
		return false, nil
	}

	// O_EXCL 让 “检查是否存在” 与 “创建” 成为同一个原子操作
	f, err := l.fs.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := f.Close(); err != nil {
		// 文件已经创建但无法正常关闭，撤回这次加锁
		return false, multierror.Append(err, l.fs.Remove(l.path))
	}

	l.locked = true
	return true, nil
}

func (l *LockFile) Unlock() (bool, error) {
	if !l.locked {
		return false, nil
	}
	if err := l.fs.Remove(l.path); err != nil {
		return false, err
	}
	l.locked = false
	return true, nil
}

// Guard 在持有锁的作用域内执行 fn
// 无论 fn 成功、失败还是 panic，都会释放锁；
// 如果锁被别人持有，返回 ErrLocked，fn 不会被执行。
func Guard(l Locker, fn func() error) (err error) {
	acquired, err := l.Lock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		// 要么被别人持有，要么本实例已经持有 (不可重入)
		return ErrLocked
	}

	defer func() {
		if _, uerr := l.Unlock(); uerr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to release lock: %w", uerr))
		}
	}()

	return fn()
}
