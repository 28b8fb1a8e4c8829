// Package mysql 交易监控 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建交易仓储
func NewTransactionRepository(db *gorm.DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("transaction_id = ?", txn.TransactionID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrDuplicateTransaction
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepository) Save(ctx context.Context, txn *domain.Transaction) error {
	if txn.ID == 0 {
		var existing domain.Transaction
		if err := r.db.WithContext(ctx).Select("id", "created_at").
			Where("transaction_id = ?", txn.TransactionID).
			First(&existing).Error; err == nil {
			txn.ID = existing.ID
			txn.CreatedAt = existing.CreatedAt
		}
	}
	return r.db.WithContext(ctx).Save(txn).Error
}

func (r *transactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) ListByOriginatorSince(ctx context.Context, originatorID string, since time.Time, excludeID string) ([]*domain.Transaction, error) {
	q := r.db.WithContext(ctx).
		Where("originator_customer_id = ? AND created_at >= ?", originatorID, since)
	if excludeID != "" {
		q = q.Where("transaction_id <> ?", excludeID)
	}
	var txns []*domain.Transaction
	err := q.Order("created_at desc").Find(&txns).Error
	return txns, err
}

func (r *transactionRepository) CountByOriginatorSince(ctx context.Context, originatorID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("originator_customer_id = ? AND created_at >= ?", originatorID, since).
		Count(&n).Error
	return n, err
}

func (r *transactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Transaction{})
	if filter.OriginatorID != "" {
		q = q.Where("originator_customer_id = ?", filter.OriginatorID)
	}
	if filter.Status != "" {
		q = q.Where("monitoring_status = ?", filter.Status)
	}
	if filter.Suspicious != nil {
		q = q.Where("is_suspicious = ?", *filter.Suspicious)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []*domain.Transaction
	err := page(q.Order("created_at desc"), filter.Offset, filter.Limit).Find(&txns).Error
	return txns, total, err
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
