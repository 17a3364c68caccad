package core

// Blob 包装调用方持有的字节切片
// Accumulate 时直接把这块内存交给 sink，不做拷贝
type Blob struct {
	content []byte
}

func NewBlob(content []byte) *Blob {
	return &Blob{content: content}
}

// Accumulate 写出 "blob <len>\0<content>"
func (b *Blob) Accumulate(sink *Accumulator) error {
	if err := WriteHeader(sink, TypeBlob, len(b.content)); err != nil {
		return err
	}
	return sink.Ingest(b.content)
}

func (b *Blob) Type() ObjectType { return TypeBlob }
func (b *Blob) Size() int64      { return int64(len(b.content)) }
