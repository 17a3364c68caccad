package catalog

import (
	"context"
	"errors"
	"fmt"

	"gitvault/pkg/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrObjectNotFound = errors.New("object not found in catalog")

// Repository 封装所有对目录表的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record 幂等写入一条对象记录
// 同一个 Hash 内容必然相同，冲突时什么都不做
func (r *Repository) Record(ctx context.Context, rec *ObjectRecord) error {
	if !types.Hash(rec.Hash).IsValid() {
		return fmt.Errorf("refusing to record invalid hash %q", rec.Hash)
	}
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to record object: %w", err)
	}
	return nil
}

// Lookup 按完整 Hash 查询
func (r *Repository) Lookup(ctx context.Context, hash types.Hash) (*ObjectRecord, error) {
	var rec ObjectRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", hash.String()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List 列出对象，typ 为空时不过滤；按 Hash 排序保证输出稳定
func (r *Repository) List(ctx context.Context, typ string, limit int) ([]ObjectRecord, error) {
	var recs []ObjectRecord
	q := r.db.GetConn().WithContext(ctx).Order("hash ASC")
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// Stats 按类型聚合数量与大小
func (r *Repository) Stats(ctx context.Context) ([]TypeStat, error) {
	var stats []TypeStat
	err := r.db.GetConn().WithContext(ctx).
		Model(&ObjectRecord{}).
		Select("type, COUNT(*) AS count, COALESCE(SUM(size), 0) AS total_size, COALESCE(SUM(stored_size), 0) AS stored_size").
		Group("type").
		Order("type ASC").
		Scan(&stats).Error
	return stats, err
}
