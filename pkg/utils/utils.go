// Package utils 提供分页、带错误码的错误与重试等通用工具
package utils

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 20
	// MaxPageSize 分页上限
	MaxPageSize = 200
)

// Pagination 分页参数
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPagination 创建分页对象，非法参数回落到默认值
func NewPagination(page, pageSize int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Pagination{Page: page, PageSize: pageSize}
}

// ParsePagination 从字符串参数解析分页
func ParsePagination(page, pageSize string) *Pagination {
	p, _ := strconv.Atoi(page)
	s, _ := strconv.Atoi(pageSize)
	return NewPagination(p, s)
}

// Offset 获取偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit 获取限制数
func (p *Pagination) Limit() int {
	return p.PageSize
}

// RetryWithBackoff 指数退避重试，ctx 取消时提前返回
func RetryWithBackoff(ctx context.Context, maxAttempts int, initialDelay, maxDelay time.Duration, fn func() error) error {
	var err error
	delay := initialDelay
	for i := 0; i < maxAttempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return err
}

// ErrorWrapper 带错误码的错误
type ErrorWrapper struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

// NewErrorWrapper 创建错误包装器
func NewErrorWrapper(code, message string, cause error) *ErrorWrapper {
	return &ErrorWrapper{Code: code, Message: message, Cause: cause}
}

// WithDetails 添加详情
func (ew *ErrorWrapper) WithDetails(details any) *ErrorWrapper {
	ew.Details = details
	return ew
}

func (ew *ErrorWrapper) Error() string {
	if ew.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", ew.Code, ew.Message, ew.Cause)
	}
	return fmt.Sprintf("[%s] %s", ew.Code, ew.Message)
}

// Unwrap 返回底层错误
func (ew *ErrorWrapper) Unwrap() error {
	return ew.Cause
}
