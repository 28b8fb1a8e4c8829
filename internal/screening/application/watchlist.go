package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wyfcoding/amlplatform/internal/screening/domain"
)

// EntryCommand 名单条目创建命令
type EntryCommand struct {
	Name        string     `json:"name" yaml:"name" binding:"required"`
	Aliases     []string   `json:"aliases" yaml:"aliases"`
	Source      string     `json:"source" yaml:"source" binding:"required"`
	SourceType  string     `json:"source_type" yaml:"source_type" binding:"required"`
	Nationality string     `json:"nationality" yaml:"nationality"`
	Country     string     `json:"country" yaml:"country"`
	RiskLevel   string     `json:"risk_level" yaml:"risk_level"`
	Description string     `json:"description" yaml:"description"`
	ExpiresAt   *time.Time `json:"expiry_date" yaml:"expiry_date"`
	Actor       string     `json:"-" yaml:"-"`
}

func (c EntryCommand) entry(id string) *domain.WatchlistEntry {
	risk := strings.ToUpper(c.RiskLevel)
	if risk == "" {
		risk = "HIGH"
	}
	return &domain.WatchlistEntry{
		EntryID:     id,
		Name:        strings.TrimSpace(c.Name),
		Aliases:     c.Aliases,
		Source:      c.Source,
		SourceType:  domain.SourceType(strings.ToUpper(c.SourceType)),
		Nationality: c.Nationality,
		Country:     c.Country,
		RiskLevel:   risk,
		Description: c.Description,
		IsActive:    true,
		ExpiresAt:   c.ExpiresAt,
	}
}

// CreateEntry 新增名单条目
func (s *ScreeningService) CreateEntry(ctx context.Context, cmd EntryCommand) (*domain.WatchlistEntry, error) {
	start := time.Now()

	entry := cmd.entry(s.newID())
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to save watchlist entry",
			"name", entry.Name,
			"error", err,
			"duration", time.Since(start))
		return nil, err
	}

	s.invalidate(ctx)
	s.record(ctx, cmd.Actor, "WATCHLIST_ENTRY_CREATED", "watchlist_entry", entry.EntryID, map[string]any{
		"name":        entry.Name,
		"source_type": entry.SourceType,
	})
	s.logger.InfoContext(ctx, "watchlist entry created",
		"entry_id", entry.EntryID,
		"source_type", entry.SourceType,
		"duration", time.Since(start))
	return entry, nil
}

// DeactivateEntry 停用名单条目
func (s *ScreeningService) DeactivateEntry(ctx context.Context, entryID, actor string) (*domain.WatchlistEntry, error) {
	entry, err := s.entryRepo.GetByEntryID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	entry.Deactivate()
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.record(ctx, actor, "WATCHLIST_ENTRY_DEACTIVATED", "watchlist_entry", entryID, nil)
	s.logger.InfoContext(ctx, "watchlist entry deactivated", "entry_id", entryID)
	return entry, nil
}

// GetEntry 获取名单条目
func (s *ScreeningService) GetEntry(ctx context.Context, entryID string) (*domain.WatchlistEntry, error) {
	return s.entryRepo.GetByEntryID(ctx, entryID)
}

// ListEntries 分页查询名单条目
func (s *ScreeningService) ListEntries(ctx context.Context, sourceType domain.SourceType, offset, limit int) ([]*domain.WatchlistEntry, int64, error) {
	return s.entryRepo.List(ctx, sourceType, offset, limit)
}

type entrySeedFile struct {
	Entries []EntryCommand `yaml:"entries"`
}

// ImportEntries 从 YAML 导入名单，同来源同名条目跳过，返回新建条数
func (s *ScreeningService) ImportEntries(ctx context.Context, r io.Reader, actor string) (int, error) {
	var file entrySeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: failed to decode watchlist seed: %v", domain.ErrInvalidEntry, err)
	}

	created := 0
	for _, cmd := range file.Entries {
		if _, err := s.entryRepo.FindByNameAndSource(ctx, strings.TrimSpace(cmd.Name), cmd.Source); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrEntryNotFound) {
			return created, err
		}

		cmd.Actor = actor
		if _, err := s.CreateEntry(ctx, cmd); err != nil {
			return created, fmt.Errorf("entry %q: %w", cmd.Name, err)
		}
		created++
	}

	s.logger.InfoContext(ctx, "watchlist imported", "created", created, "total", len(file.Entries))
	return created, nil
}

func (s *ScreeningService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "watchlist cache invalidation failed", "error", err)
	}
}
