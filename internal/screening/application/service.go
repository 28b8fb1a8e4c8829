// Package application 名单筛查应用层
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/amlplatform/internal/screening/domain"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
	"github.com/wyfcoding/amlplatform/pkg/mq"
)

// AuditRecorder 审计记录端口
type AuditRecorder interface {
	Record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) error
}

// Options 可选依赖
type Options struct {
	Cache   domain.EntryCache
	Audit   AuditRecorder
	Metrics *metrics.Metrics
	Clock   func() time.Time
	NewID   func() string
}

// ScreeningService 名单筛查服务
type ScreeningService struct {
	entryRepo domain.EntryRepository
	matchRepo domain.MatchRepository
	cache     domain.EntryCache
	matcher   domain.Matcher
	publisher mq.EventPublisher
	audit     AuditRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewScreeningService 创建名单筛查服务
func NewScreeningService(
	entryRepo domain.EntryRepository,
	matchRepo domain.MatchRepository,
	matcher domain.Matcher,
	publisher mq.EventPublisher,
	logger *slog.Logger,
	opts Options,
) *ScreeningService {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &ScreeningService{
		entryRepo: entryRepo,
		matchRepo: matchRepo,
		cache:     opts.Cache,
		matcher:   matcher,
		publisher: publisher,
		audit:     opts.Audit,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       opts.Clock,
		newID:     opts.NewID,
	}
}

// ScreenParties 并发筛查交易各参与方，保存并发布命中，返回命中条数
func (s *ScreeningService) ScreenParties(ctx context.Context, transactionID string, parties []domain.Party) (int, error) {
	start := time.Now()

	entries, err := s.activeEntries(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	var (
		mu      sync.Mutex
		matches []*domain.WatchlistMatch
		g       errgroup.Group
	)
	for _, party := range parties {
		g.Go(func() error {
			for _, c := range s.matcher.Screen(party.Name, entries, now) {
				m := domain.NewWatchlistMatch(s.newID(), transactionID, party, c, now)
				if err := s.matchRepo.Save(ctx, m); err != nil {
					return fmt.Errorf("failed to save watchlist match: %w", err)
				}
				mu.Lock()
				matches = append(matches, m)
				mu.Unlock()
			}
			return nil
		})
	}
	err = g.Wait()

	for _, m := range matches {
		s.publishEvents(ctx, m)
		if s.metrics != nil {
			s.metrics.WatchlistMatches.WithLabelValues(string(m.WatchlistType)).Inc()
		}
	}
	if err != nil {
		return len(matches), err
	}

	s.logger.InfoContext(ctx, "transaction parties screened",
		"transaction_id", transactionID,
		"parties", len(parties),
		"entries", len(entries),
		"matches", len(matches),
		"duration", time.Since(start))
	return len(matches), nil
}

// CheckName 即时名称筛查，不落库
func (s *ScreeningService) CheckName(ctx context.Context, name string) ([]domain.Candidate, error) {
	entries, err := s.activeEntries(ctx)
	if err != nil {
		return nil, err
	}
	return s.matcher.Screen(name, entries, s.now()), nil
}

// activeEntries 优先读缓存，缓存异常时回源数据库
func (s *ScreeningService) activeEntries(ctx context.Context) ([]*domain.WatchlistEntry, error) {
	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx)
		if err == nil && ok {
			return entries, nil
		}
		if err != nil {
			s.logger.WarnContext(ctx, "watchlist cache read failed", "error", err)
		}
	}

	entries, err := s.entryRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, entries); err != nil {
			s.logger.WarnContext(ctx, "watchlist cache write failed", "error", err)
		}
	}
	return entries, nil
}

// RefreshCache 重建名单缓存，返回条目数
func (s *ScreeningService) RefreshCache(ctx context.Context) (int, error) {
	start := time.Now()
	entries, err := s.entryRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, entries); err != nil {
			return 0, err
		}
	}
	s.logger.InfoContext(ctx, "watchlist cache refreshed", "entries", len(entries), "duration", time.Since(start))
	return len(entries), nil
}

// ListMatches 交易的全部命中
func (s *ScreeningService) ListMatches(ctx context.Context, transactionID string) ([]*domain.WatchlistMatch, error) {
	return s.matchRepo.ListByTransaction(ctx, transactionID)
}

// ListMatchesByStatus 按状态分页查询命中
func (s *ScreeningService) ListMatchesByStatus(ctx context.Context, status domain.MatchStatus, offset, limit int) ([]*domain.WatchlistMatch, int64, error) {
	return s.matchRepo.ListByStatus(ctx, status, offset, limit)
}

// ConfirmMatch 确认命中
func (s *ScreeningService) ConfirmMatch(ctx context.Context, matchID, reviewer, notes string) (*domain.WatchlistMatch, error) {
	return s.review(ctx, matchID, reviewer, "MATCH_CONFIRMED", func(m *domain.WatchlistMatch, now time.Time) error {
		return m.Confirm(reviewer, notes, now)
	})
}

// DismissMatch 标记命中为误报
func (s *ScreeningService) DismissMatch(ctx context.Context, matchID, reviewer, notes string) (*domain.WatchlistMatch, error) {
	return s.review(ctx, matchID, reviewer, "MATCH_DISMISSED", func(m *domain.WatchlistMatch, now time.Time) error {
		return m.Dismiss(reviewer, notes, now)
	})
}

func (s *ScreeningService) review(ctx context.Context, matchID, reviewer, action string, fn func(*domain.WatchlistMatch, time.Time) error) (*domain.WatchlistMatch, error) {
	m, err := s.matchRepo.GetByMatchID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := fn(m, s.now()); err != nil {
		return nil, err
	}
	if err := s.matchRepo.Save(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "failed to save match review", "match_id", matchID, "error", err)
		return nil, err
	}

	s.record(ctx, reviewer, action, "watchlist_match", matchID, map[string]any{
		"status":         m.Status,
		"transaction_id": m.TransactionID,
	})
	s.publishEvents(ctx, m)
	s.logger.InfoContext(ctx, "watchlist match reviewed", "match_id", matchID, "status", m.Status)
	return m, nil
}

func (s *ScreeningService) publishEvents(ctx context.Context, m *domain.WatchlistMatch) {
	defer m.ClearDomainEvents()
	if s.publisher == nil {
		return
	}
	for _, event := range m.GetDomainEvents() {
		if err := s.publisher.Publish(ctx, event.EventName(), m.TransactionID, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish event",
				"event", event.EventName(),
				"match_id", m.MatchID,
				"error", err)
		}
	}
}

func (s *ScreeningService) record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if actor == "" {
		actor = "system"
	}
	if err := s.audit.Record(ctx, actor, action, entityType, entityID, details); err != nil {
		s.logger.ErrorContext(ctx, "failed to write audit entry", "action", action, "error", err)
	}
}

// IsNotFound 是否为资源不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrEntryNotFound) || errors.Is(err, domain.ErrMatchNotFound)
}
