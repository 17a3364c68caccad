package catalog

import "time"

// ObjectRecord 是一个已存储对象在关系库中的投影
// 对象本身仍然只存在于对象库里，这里只记录用于查询的元数据
type ObjectRecord struct {
	// Hash 是主键 (40 位小写十六进制)
	Hash string `gorm:"primaryKey;type:char(40)"`

	Type string `gorm:"index;type:varchar(16);not null"`
	Size int64  `gorm:"not null"`

	// StoredSize 是压缩后落盘的字节数
	StoredSize int64

	CreatedAt time.Time `gorm:"index"`
}

func (ObjectRecord) TableName() string {
	return "objects"
}

// TypeStat 按类型聚合的统计
type TypeStat struct {
	Type       string
	Count      int64
	TotalSize  int64
	StoredSize int64
}
