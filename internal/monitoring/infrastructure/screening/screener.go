// Package screening 交易参与方名单筛查适配器
package screening

import (
	"context"
	"strings"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	screeningdomain "github.com/wyfcoding/amlplatform/internal/screening/domain"
)

// PartyScreener 名单筛查能力，由 screening/application.ScreeningService 实现
type PartyScreener interface {
	ScreenParties(ctx context.Context, transactionID string, parties []screeningdomain.Party) (int, error)
}

// Screener 将交易参与方转换为筛查对象
type Screener struct {
	svc PartyScreener
}

// NewScreener 创建适配器
func NewScreener(svc PartyScreener) *Screener {
	return &Screener{svc: svc}
}

// ScreenTransactionParties 名称为空的参与方不参与筛查
func (s *Screener) ScreenTransactionParties(ctx context.Context, transactionID string, parties []domain.Party) (int, error) {
	targets := make([]screeningdomain.Party, 0, len(parties))
	for _, p := range parties {
		name := p.DisplayName()
		if strings.TrimSpace(name) == "" {
			continue
		}
		targets = append(targets, screeningdomain.Party{CustomerID: p.CustomerID, Name: name})
	}
	if len(targets) == 0 {
		return 0, nil
	}
	return s.svc.ScreenParties(ctx, transactionID, targets)
}
