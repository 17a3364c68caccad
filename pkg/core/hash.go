package core

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gitvault/pkg/types"

	"github.com/klauspost/compress/zlib"
)

var (
	ErrMalformedHeader = errors.New("malformed object header")
	ErrSizeMismatch    = errors.New("object size does not match header")
	ErrHashMismatch    = errors.New("object content does not match its address")
)

// 头部字段的长度上限，防止损坏的数据让解析器无限读下去
const (
	maxTypeLen = 16
	maxSizeLen = 20
)

// Sealed 是已经完成序列化的对象: 地址 + 压缩后的 Loose Object 字节
type Sealed struct {
	hash types.Hash
	data []byte
}

func (s *Sealed) ID() types.Hash { return s.hash }
func (s *Sealed) Bytes() []byte  { return s.data }

// Seal 驱动对象把自己完整地写入一个新的 Accumulator，并返回最终结果
// 这里用泛型做静态分发：每个调用点只会实例化一种具体对象类型
func Seal[O Object](obj O) (*Sealed, error) {
	sink := NewAccumulator()
	if err := obj.Accumulate(sink); err != nil {
		return nil, fmt.Errorf("failed to serialize object: %w", err)
	}

	h, data, err := sink.Finish()
	if err != nil {
		return nil, err
	}
	return &Sealed{hash: h, data: data}, nil
}

// HashObject 计算 (type, payload) 的 Content Address，不落盘
func HashObject(typ ObjectType, payload []byte) (types.Hash, error) {
	sealed, err := Seal(NewRaw(typ, payload))
	if err != nil {
		return "", err
	}
	return sealed.ID(), nil
}

// ReadHeader 从解压后的流中解析 "<type> <size>\0"
// 只消费头部字节，r 之后停在 payload 的第一个字节上
func ReadHeader(r io.ByteReader) (types.ObjectInfo, error) {
	typ, err := readField(r, ' ', maxTypeLen)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	objType, err := ParseObjectType(typ)
	if err != nil {
		return types.ObjectInfo{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	sizeStr, err := readField(r, 0, maxSizeLen)
	if err != nil {
		return types.ObjectInfo{}, err
	}
	// 只接受规范的十进制: 不允许前导零、符号、空串
	if sizeStr == "" || (len(sizeStr) > 1 && sizeStr[0] == '0') || sizeStr[0] == '+' || sizeStr[0] == '-' {
		return types.ObjectInfo{}, fmt.Errorf("%w: bad size %q", ErrMalformedHeader, sizeStr)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return types.ObjectInfo{}, fmt.Errorf("%w: bad size %q", ErrMalformedHeader, sizeStr)
	}

	return types.ObjectInfo{Type: objType.String(), Size: size}, nil
}

func readField(r io.ByteReader, delim byte, limit int) (string, error) {
	var field []byte
	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			return "", fmt.Errorf("%w: unexpected end of header", ErrMalformedHeader)
		}
		if err != nil {
			return "", err
		}
		if c == delim {
			return string(field), nil
		}
		if len(field) >= limit {
			return "", fmt.Errorf("%w: field too long", ErrMalformedHeader)
		}
		field = append(field, c)
	}
}

// OpenObject 解压 Loose Object 并解析头部
// 返回的 Reader 只包含 payload；调用方负责关闭
func OpenObject(compressed io.Reader) (types.ObjectInfo, io.ReadCloser, error) {
	zr, err := zlib.NewReader(compressed)
	if err != nil {
		return types.ObjectInfo{}, nil, fmt.Errorf("failed to open zlib stream: %w", err)
	}

	br := bufio.NewReader(zr)
	info, err := ReadHeader(br)
	if err != nil {
		zr.Close()
		return types.ObjectInfo{}, nil, err
	}

	return info, &payloadReader{Reader: br, closer: zr}, nil
}

type payloadReader struct {
	io.Reader
	closer io.Closer
}

func (p *payloadReader) Close() error { return p.closer.Close() }

// DecodeObject 通用的解码函数：解压、解析头部、校验长度，返回 payload
func DecodeObject(compressed []byte) (types.ObjectInfo, []byte, error) {
	info, rc, err := OpenObject(bytes.NewReader(compressed))
	if err != nil {
		return types.ObjectInfo{}, nil, err
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return types.ObjectInfo{}, nil, fmt.Errorf("failed to inflate object: %w", err)
	}
	if int64(len(payload)) != info.Size {
		return types.ObjectInfo{}, nil, fmt.Errorf("%w: header says %d, got %d", ErrSizeMismatch, info.Size, len(payload))
	}
	return info, payload, nil
}

// Verify 重新计算解压后内容的 SHA-1，确认它与地址一致
func Verify(h types.Hash, compressed []byte) error {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to open zlib stream: %w", err)
	}
	defer zr.Close()

	digester := sha1.New()
	if _, err := io.Copy(digester, zr); err != nil {
		return fmt.Errorf("failed to inflate object: %w", err)
	}
	if got := hex.EncodeToString(digester.Sum(nil)); got != h.String() {
		return fmt.Errorf("%w: want %s, got %s", ErrHashMismatch, h, got)
	}

	// 地址正确之后再检查头部与长度
	if _, _, err := DecodeObject(compressed); err != nil {
		return err
	}
	return nil
}
