// Package mysql 名单筛查 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/screening/domain"
)

type entryRepository struct {
	db *gorm.DB
}

// NewEntryRepository 创建名单条目仓储
func NewEntryRepository(db *gorm.DB) domain.EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) Save(ctx context.Context, entry *domain.WatchlistEntry) error {
	if entry.ID == 0 {
		var existing domain.WatchlistEntry
		if err := r.db.WithContext(ctx).Select("id", "created_at").
			Where("entry_id = ?", entry.EntryID).
			First(&existing).Error; err == nil {
			entry.ID = existing.ID
			entry.CreatedAt = existing.CreatedAt
		}
	}
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *entryRepository) GetByEntryID(ctx context.Context, entryID string) (*domain.WatchlistEntry, error) {
	return r.first(r.db.WithContext(ctx).Where("entry_id = ?", entryID))
}

func (r *entryRepository) FindByNameAndSource(ctx context.Context, name, source string) (*domain.WatchlistEntry, error) {
	return r.first(r.db.WithContext(ctx).Where("name = ? AND source = ?", name, source))
}

func (r *entryRepository) first(q *gorm.DB) (*domain.WatchlistEntry, error) {
	var entry domain.WatchlistEntry
	if err := q.First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListActive 过期条目在查询时排除
func (r *entryRepository) ListActive(ctx context.Context) ([]*domain.WatchlistEntry, error) {
	var entries []*domain.WatchlistEntry
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expiry_date IS NULL OR expiry_date > ?", time.Now().UTC()).
		Find(&entries).Error
	return entries, err
}

func (r *entryRepository) List(ctx context.Context, sourceType domain.SourceType, offset, limit int) ([]*domain.WatchlistEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.WatchlistEntry{})
	if sourceType != "" {
		q = q.Where("source_type = ?", sourceType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*domain.WatchlistEntry
	err := page(q.Order("created_at desc"), offset, limit).Find(&entries).Error
	return entries, total, err
}

type matchRepository struct {
	db *gorm.DB
}

// NewMatchRepository 创建命中仓储
func NewMatchRepository(db *gorm.DB) domain.MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) Save(ctx context.Context, match *domain.WatchlistMatch) error {
	if match.ID == 0 {
		var existing domain.WatchlistMatch
		if err := r.db.WithContext(ctx).Select("id", "created_at").
			Where("match_id = ?", match.MatchID).
			First(&existing).Error; err == nil {
			match.ID = existing.ID
			match.CreatedAt = existing.CreatedAt
		}
	}
	return r.db.WithContext(ctx).Save(match).Error
}

func (r *matchRepository) GetByMatchID(ctx context.Context, matchID string) (*domain.WatchlistMatch, error) {
	var match domain.WatchlistMatch
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (r *matchRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.WatchlistMatch, error) {
	var matches []*domain.WatchlistMatch
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("match_strength desc").
		Find(&matches).Error
	return matches, err
}

func (r *matchRepository) ListByStatus(ctx context.Context, status domain.MatchStatus, offset, limit int) ([]*domain.WatchlistMatch, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.WatchlistMatch{})
	if status != "" {
		q = q.Where("match_status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var matches []*domain.WatchlistMatch
	err := page(q.Order("created_at desc"), offset, limit).Find(&matches).Error
	return matches, total, err
}

func page(q *gorm.DB, offset, limit int) *gorm.DB {
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// Models 需要迁移的表
func Models() []any {
	return []any{&domain.WatchlistEntry{}, &domain.WatchlistMatch{}}
}
