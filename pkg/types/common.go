// pkg/types/common.go
package types

// Hash 代表对象的唯一标识符 (SHA-1 Hex String, 40 个小写十六进制字符)
// 这是一个“值对象”，应当是不可变的。
type Hash string

// HashLen 是 Hex 形式 Hash 的长度
const HashLen = 40

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }
func (h Hash) IsValid() bool {
	if len(h) != HashLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Shard 把 Hash 拆成 2 字符的目录名和 38 字符的文件名 (Directory Splaying)
// Example: "3b18e5..." -> ("3b", "18e5...")
func (h Hash) Shard() (dir, file string) {
	s := string(h)
	if len(s) < 2 {
		return "", s
	}
	return s[:2], s[2:]
}

// HashPrefix 是用户输入的短哈希
type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// ObjectInfo 描述对象头部的信息: "<type> <size>\0"
type ObjectInfo struct {
	Type string
	Size int64
}
