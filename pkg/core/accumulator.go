package core

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"gitvault/pkg/types"

	"github.com/klauspost/compress/zlib"
)

// ErrSealed 表示 Accumulator 已经 Finish，不能再继续写入
var ErrSealed = errors.New("accumulator already finished")

// Accumulator 是对象序列化的“汇点” (Sink)
// 每一次 Ingest 的字节片会同时流入两个消费者：
//  1. SHA-1 摘要 (决定 Content Address)
//  2. zlib 压缩器 (写入内部的 buffer，最终成为磁盘上的 Loose Object)
//
// 它不持有原始内容的拷贝：传入的切片只读，调用返回后不会被引用。
// 调用方必须按规范序列化的顺序依次 Ingest，Accumulator 无法检测乱序或缺片。
type Accumulator struct {
	digester hash.Hash
	encoder  *zlib.Writer
	buf      bytes.Buffer // 压缩后的数据
	size     int64        // 已摄入的原始字节数
	sealed   bool
	err      error // 粘性错误：一旦失败，整个累积作废
}

// NewAccumulator 创建一个全新的 Accumulator
func NewAccumulator() *Accumulator {
	a := &Accumulator{digester: sha1.New()}
	a.encoder = zlib.NewWriter(&a.buf)
	return a
}

// Ingest 处理序列化对象的下一个连续片段
func (a *Accumulator) Ingest(p []byte) error {
	if a.err != nil {
		return a.err
	}
	if a.sealed {
		return ErrSealed
	}

	// hash.Hash 的 Write 永远不会返回错误
	a.digester.Write(p)

	if _, err := a.encoder.Write(p); err != nil {
		a.fail(fmt.Errorf("failed to compress object stream: %w", err))
		return a.err
	}
	a.size += int64(len(p))
	return nil
}

// Size 返回目前已摄入的规范序列化字节数
func (a *Accumulator) Size() int64 { return a.size }

// Finish 结束累积，返回摘要 (40 位 Hex) 和压缩后的字节
// 两个返回值相互独立；Finish 之后 Accumulator 被密封。
func (a *Accumulator) Finish() (types.Hash, []byte, error) {
	if a.err != nil {
		return "", nil, a.err
	}
	if a.sealed {
		return "", nil, ErrSealed
	}
	a.sealed = true

	// Close 会 flush 剩余数据并写入 Adler-32 校验尾
	if err := a.encoder.Close(); err != nil {
		a.fail(fmt.Errorf("failed to finish zlib stream: %w", err))
		return "", nil, a.err
	}

	digest := hex.EncodeToString(a.digester.Sum(nil))
	return types.Hash(digest), a.buf.Bytes(), nil
}

// fail 丢弃所有中间状态，并记录错误
func (a *Accumulator) fail(err error) {
	a.err = err
	a.digester.Reset()
	a.buf.Reset()
}
