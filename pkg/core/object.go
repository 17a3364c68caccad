package core

import (
	"fmt"
	"strconv"
)

// ObjectType 定义了 Git 兼容的对象类型 (也就是头部的 Tag)
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"   // 原始文件内容
	TypeTree   ObjectType = "tree"   // 目录树 (尚未实现具体类型)
	TypeCommit ObjectType = "commit" // 版本快照 (尚未实现具体类型)
	TypeTag    ObjectType = "tag"    // 注解标签 (尚未实现具体类型)
)

func (t ObjectType) String() string { return string(t) }

// ParseObjectType 校验并转换头部中的类型字符串
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return t, nil
	default:
		return "", fmt.Errorf("unknown object type %q", s)
	}
}

// Object 是所有可寻址对象的唯一扩展点
// 实现者把自身的规范序列化 "<type> <len>\0<payload>" 通过一次或多次 Ingest 写入 sink，
// 顺序必须正确。Store 永远不会检查对象的内部结构。
type Object interface {
	Accumulate(sink *Accumulator) error
}

// WriteHeader 写入 "<type> <size>\0" 头部
// 注意：size 是 payload 的字节数，不是字符数
func WriteHeader(sink *Accumulator, typ ObjectType, size int) error {
	if err := sink.Ingest([]byte(string(typ) + " ")); err != nil {
		return err
	}
	if err := sink.Ingest(strconv.AppendInt(nil, int64(size), 10)); err != nil {
		return err
	}
	return sink.Ingest([]byte{0})
}

// Raw 是带任意类型 Tag 的原始对象
// hash-object -t 使用它来写入尚未有具体实现的类型 (tree/commit/tag)
type Raw struct {
	typ     ObjectType
	payload []byte
}

func NewRaw(typ ObjectType, payload []byte) *Raw {
	return &Raw{typ: typ, payload: payload}
}

func (r *Raw) Accumulate(sink *Accumulator) error {
	if err := WriteHeader(sink, r.typ, len(r.payload)); err != nil {
		return err
	}
	return sink.Ingest(r.payload)
}

func (r *Raw) Type() ObjectType { return r.typ }
