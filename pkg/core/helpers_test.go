package core

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mustSeal 序列化对象，如果失败直接终止测试
func mustSeal[O Object](t *testing.T, obj O, msgAndArgs ...any) *Sealed {
	t.Helper()
	s, err := Seal(obj)
	require.NoError(t, err, msgAndArgs...)
	return s
}

// inflate 故意使用标准库的 compress/zlib 解压
// 用来证明产物与其他 zlib 实现 (包括 git 本身) 兼容
func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := zlib.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer zr.Close()
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

// deflate 构造任意的压缩数据，用来模拟损坏的对象
func deflate(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// failWriter 模拟底层 I/O 失败
type failWriter struct{}

var errDiskGone = errors.New("backing buffer gone")

func (failWriter) Write(p []byte) (int, error) { return 0, errDiskGone }

// chunkedObject 把规范序列化切成任意多片写入
type chunkedObject struct {
	chunks [][]byte
}

func (c chunkedObject) Accumulate(sink *Accumulator) error {
	for _, chunk := range c.chunks {
		if err := sink.Ingest(chunk); err != nil {
			return err
		}
	}
	return nil
}

// brokenObject 在序列化中途失败
type brokenObject struct{}

var errBroken = errors.New("object cannot serialize itself")

func (brokenObject) Accumulate(sink *Accumulator) error {
	if err := sink.Ingest([]byte("blob ")); err != nil {
		return err
	}
	return errBroken
}
