// Package goaml goAML 监管报送客户端
package goaml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
)

// Config 客户端配置
type Config struct {
	BaseURL  string
	OrgID    string
	Username string
	Password string
	Timeout  time.Duration
}

// ErrUnauthorized 认证失败
var ErrUnauthorized = errors.New("goAML authentication failed")

type authRequest struct {
	OrgID    string `json:"orgId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	SessionToken string `json:"session_token"`
}

// SubmitResponse 提交回执
type SubmitResponse struct {
	ReportID  string `json:"report_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// StatusResponse 报告状态
type StatusResponse struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// ValidationResponse 报文校验结果
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Client goAML REST 客户端，会话令牌失效时自动重新认证一次
type Client struct {
	http   *resty.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	token string
}

// NewClient 创建客户端
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		http:   httpClient,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate 获取会话令牌
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var out authResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(authRequest{OrgID: c.cfg.OrgID, Username: c.cfg.Username, Password: c.cfg.Password}).
		SetResult(&out).
		Post("/authentication")
	if err != nil {
		return "", fmt.Errorf("goAML authentication request failed: %w", err)
	}
	if resp.IsError() || out.SessionToken == "" {
		c.logger.ErrorContext(ctx, "goAML authentication rejected", "status", resp.StatusCode())
		return "", fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode())
	}

	c.mu.Lock()
	c.token = out.SessionToken
	c.mu.Unlock()
	return out.SessionToken, nil
}

func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.Authenticate(ctx)
}

// call 执行需认证的请求，401 时重新认证后重试一次
func (c *Client) call(ctx context.Context, send func(req *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	token, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := send(c.http.R().SetContext(ctx).SetAuthToken(token))
	if err == nil && resp.StatusCode() == http.StatusUnauthorized {
		if token, err = c.Authenticate(ctx); err != nil {
			return nil, err
		}
		resp, err = send(c.http.R().SetContext(ctx).SetAuthToken(token))
	}
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return resp, fmt.Errorf("goAML returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return resp, nil
}

// SubmitReport 提交 XML 报文
func (c *Client) SubmitReport(ctx context.Context, body []byte) (*SubmitResponse, error) {
	var out SubmitResponse
	_, err := c.call(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetHeader("Content-Type", "application/xml").SetBody(body).SetResult(&out).Post("/reports/submit")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateReport 按 goAML schema 校验报文
func (c *Client) ValidateReport(ctx context.Context, body []byte) (*ValidationResponse, error) {
	var out ValidationResponse
	_, err := c.call(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetHeader("Content-Type", "application/xml").SetBody(body).SetResult(&out).Post("/reports/validate")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportStatus 查询报告状态
func (c *Client) ReportStatus(ctx context.Context, reportID string) (*StatusResponse, error) {
	var out StatusResponse
	_, err := c.call(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", reportID).SetResult(&out).Get("/reports/{id}/status")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// File 生成并提交 STR，返回 goAML 回执编号
func (c *Client) File(ctx context.Context, r *domain.SuspiciousActivityReport) (string, error) {
	start := time.Now()

	body, err := BuildSTR(r, c.now())
	if err != nil {
		return "", fmt.Errorf("failed to build goAML XML: %w", err)
	}
	out, err := c.SubmitReport(ctx, body)
	if err != nil {
		c.logger.ErrorContext(ctx, "goAML submission failed", "report_id", r.ReportID, "error", err, "duration", time.Since(start))
		return "", err
	}

	ref := out.ReportID
	if ref == "" {
		ref = out.Reference
	}
	if ref == "" {
		return "", errors.New("goAML response carries no report reference")
	}
	c.logger.InfoContext(ctx, "goAML report submitted", "report_id", r.ReportID, "reference", ref, "duration", time.Since(start))
	return ref, nil
}

// Status 查询回执编号对应的状态
func (c *Client) Status(ctx context.Context, reference string) (string, error) {
	out, err := c.ReportStatus(ctx, reference)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}
