package pagerduty

import (
	"context"
	"fmt"
	"time"

	"humidity-daemon/internal/config"
	"humidity-daemon/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultEventsURL = "https://events.pagerduty.com/v2/enqueue"

	component = "humidity-daemon"
	group     = "nest-monitoring"
	class     = "humidity"
)

// GatewayError PagerDuty 调用失败，携带远端状态
type GatewayError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pagerduty call failed: %v", e.Err)
	}
	return fmt.Sprintf("pagerduty API error: status=%s http_status=%d", e.Status, e.StatusCode)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// eventPayload Events API v2 事件载荷
type eventPayload struct {
	Summary       string      `json:"summary"`
	Source        string      `json:"source"`
	Severity      string      `json:"severity"`
	Component     string      `json:"component,omitempty"`
	Group         string      `json:"group,omitempty"`
	Class         string      `json:"class,omitempty"`
	CustomDetails interface{} `json:"custom_details,omitempty"`
}

// eventRequest Events API v2 请求
type eventRequest struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"` // trigger, resolve, acknowledge
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

// eventResponse Events API v2 响应
type eventResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	DedupKey string `json:"dedup_key"`
}

// Client PagerDuty Events API v2 客户端
// 每个设备用固定的去重键关联 trigger 和 resolve（同一设备同时至多一个打开的 incident）
type Client struct {
	httpClient *resty.Client
	cfg        *config.Config
	logger     *zap.Logger
}

// NewClient 创建 PagerDuty 客户端
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(defaultEventsURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetBaseURL 覆盖 Events API 地址（测试用）
func (c *Client) SetBaseURL(url string) {
	c.httpClient.SetBaseURL(url)
}

// DedupKeyFor 构建设备的去重键（同一设备的 trigger/resolve 共用）
func DedupKeyFor(deviceID string) string {
	return "humidity-alert-" + deviceID
}

// Trigger 触发报警事件，返回 PagerDuty 确认的去重键
func (c *Client) Trigger(ctx context.Context, summary, source string, details *models.AlertDetails) (string, error) {
	resp, err := c.send(ctx, eventRequest{
		RoutingKey:  c.cfg.PagerDuty.IntegrationKey,
		EventAction: "trigger",
		DedupKey:    DedupKeyFor(source),
		Payload: eventPayload{
			Summary:       summary,
			Source:        source,
			Severity:      c.cfg.PagerDuty.Severity,
			Component:     component,
			Group:         group,
			Class:         class,
			CustomDetails: details,
		},
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("PagerDuty alert triggered",
		zap.String("dedup_key", resp.DedupKey),
		zap.String("device_id", source),
	)

	return resp.DedupKey, nil
}

// Resolve 关闭报警事件
func (c *Client) Resolve(ctx context.Context, dedupKey, summary string) error {
	_, err := c.send(ctx, eventRequest{
		RoutingKey:  c.cfg.PagerDuty.IntegrationKey,
		EventAction: "resolve",
		DedupKey:    dedupKey,
		Payload: eventPayload{
			Summary:  summary,
			Source:   component,
			Severity: "info",
		},
	})
	if err != nil {
		return err
	}

	c.logger.Info("PagerDuty alert resolved",
		zap.String("dedup_key", dedupKey),
	)

	return nil
}

// Acknowledge 确认报警事件
func (c *Client) Acknowledge(ctx context.Context, dedupKey string) error {
	_, err := c.send(ctx, eventRequest{
		RoutingKey:  c.cfg.PagerDuty.IntegrationKey,
		EventAction: "acknowledge",
		DedupKey:    dedupKey,
		Payload: eventPayload{
			Summary:  "Alert acknowledged",
			Source:   component,
			Severity: "info",
		},
	})
	if err != nil {
		return err
	}

	c.logger.Info("PagerDuty alert acknowledged",
		zap.String("dedup_key", dedupKey),
	)

	return nil
}

// send 发送事件并检查响应状态
func (c *Client) send(ctx context.Context, req eventRequest) (*eventResponse, error) {
	var result eventResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("")

	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	if resp.IsError() || result.Status != "success" {
		return nil, &GatewayError{
			StatusCode: resp.StatusCode(),
			Status:     result.Status,
		}
	}

	return &result, nil
}
