// Package monitoring 从交易监控上下文读取报告所需的交易信息
package monitoring

import (
	"context"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
	monitoringdomain "github.com/wyfcoding/amlplatform/internal/monitoring/domain"
)

// TransactionReader 交易仓储的只读子集
type TransactionReader interface {
	GetByTransactionID(ctx context.Context, transactionID string) (*monitoringdomain.Transaction, error)
}

// TransactionLookup 基于交易仓储的查询适配器
type TransactionLookup struct {
	txns TransactionReader
}

// NewTransactionLookup 创建适配器
func NewTransactionLookup(txns TransactionReader) *TransactionLookup {
	return &TransactionLookup{txns: txns}
}

// LookupTransaction 查询交易并转换为报告结构
func (l *TransactionLookup) LookupTransaction(ctx context.Context, transactionID string) (*domain.TransactionInfo, error) {
	txn, err := l.txns.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &domain.TransactionInfo{
		TransactionID:   txn.TransactionID,
		ReferenceNumber: txn.ReferenceNumber,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		TransactionDate: txn.TransactionDate,
		Originator:      toParty(txn.Originator),
		Beneficiary:     toParty(txn.Beneficiary),
	}, nil
}

func toParty(p monitoringdomain.Party) domain.PartyInfo {
	return domain.PartyInfo{
		CustomerID:  p.CustomerID,
		Type:        p.CustomerType,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		CompanyName: p.CompanyName,
	}
}
