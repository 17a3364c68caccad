package exporter

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gitvault/pkg/types"
)

var ErrMalformedTree = errors.New("malformed tree object")

// rawHashLen 是 tree 条目里二进制 SHA-1 的长度
const rawHashLen = 20

// TreeEntry 是 tree 对象里的一行: "<mode> <name>\0<20 字节哈希>"
type TreeEntry struct {
	Mode string
	Name string
	Hash types.Hash
}

// Kind 由 mode 推出条目类型
func (e TreeEntry) Kind() string {
	switch e.Mode {
	case "40000":
		return "tree"
	case "160000":
		return "commit"
	default:
		return "blob"
	}
}

// ParseTree 解码 tree 对象的负载
func ParseTree(payload []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for len(payload) > 0 {
		sp := bytes.IndexByte(payload, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("%w: missing mode", ErrMalformedTree)
		}
		mode := string(payload[:sp])
		payload = payload[sp+1:]

		nul := bytes.IndexByte(payload, 0)
		if nul <= 0 {
			return nil, fmt.Errorf("%w: missing name", ErrMalformedTree)
		}
		name := string(payload[:nul])
		payload = payload[nul+1:]

		if len(payload) < rawHashLen {
			return nil, fmt.Errorf("%w: truncated hash for %q", ErrMalformedTree, name)
		}
		entries = append(entries, TreeEntry{
			Mode: mode,
			Name: name,
			Hash: types.Hash(hex.EncodeToString(payload[:rawHashLen])),
		})
		payload = payload[rawHashLen:]
	}
	return entries, nil
}

func printTree(payload []byte, w io.Writer) error {
	entries, err := ParseTree(payload)
	if err != nil {
		return err
	}
	for _, e := range entries {
		// 与 git cat-file -p 一致：mode 补齐 6 位
		mode := e.Mode
		if len(mode) < 6 {
			mode = strings.Repeat("0", 6-len(mode)) + mode
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\t%s\n", mode, e.Kind(), e.Hash, e.Name); err != nil {
			return err
		}
	}
	return nil
}

// StatRow 是 PrintTable 的一行
type StatRow struct {
	Hash types.Hash
	Type string
	Size int64
}

// PrintTable 以对齐的表格输出对象清单 (catalog ls)
func PrintTable(rows []StatRow, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "HASH\tTYPE\tSIZE\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Hash, r.Type, FormatSize(r.Size))
	}
	return tw.Flush()
}

func FormatSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}
