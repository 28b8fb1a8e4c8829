package application

import (
	"context"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

// GetTransaction 获取交易
func (s *MonitoringService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.txnRepo.GetByTransactionID(ctx, transactionID)
}

// ListTransactions 分页查询交易
func (s *MonitoringService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	return s.txnRepo.List(ctx, filter)
}

// SubmitAndMonitor 保存交易并立即监控
func (s *MonitoringService) SubmitAndMonitor(ctx context.Context, cmd SubmitTransactionCommand) (*MonitorResult, error) {
	txn, err := s.SubmitTransaction(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return s.MonitorTransaction(ctx, txn.TransactionID)
}
