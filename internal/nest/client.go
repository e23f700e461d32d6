package nest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"humidity-daemon/internal/config"
	"humidity-daemon/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://smartdevicemanagement.googleapis.com/v1"
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	// 提前刷新 token 的余量，避免临界过期
	tokenRefreshMargin = time.Minute

	humidityTrait = "sdm.devices.traits.Humidity"
)

// tokenResponse OAuth token 刷新响应
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// deviceTraits 设备 trait 集合（只解析湿度）
type deviceTraits struct {
	Humidity *struct {
		AmbientHumidityPercent float64 `json:"ambientHumidityPercent"`
	} `json:"sdm.devices.traits.Humidity"`
}

// apiDevice Nest SDM API 设备对象
type apiDevice struct {
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Traits deviceTraits `json:"traits"`
}

// devicesResponse 设备列表响应
type devicesResponse struct {
	Devices []apiDevice `json:"devices"`
}

// Client Nest Smart Device Management API 客户端
// 负责 OAuth refresh-token 流程和湿度读数获取
type Client struct {
	httpClient *resty.Client
	authClient *resty.Client
	cfg        *config.Config
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient 创建 Nest 客户端
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	authClient := resty.New().
		SetBaseURL(defaultTokenURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{
		httpClient: httpClient,
		authClient: authClient,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetBaseURL 覆盖 API 地址（测试用）
func (c *Client) SetBaseURL(apiURL, tokenURL string) {
	c.httpClient.SetBaseURL(apiURL)
	c.authClient.SetBaseURL(tokenURL)
}

// refreshAccessToken 用 refresh token 换取新的 access token
func (c *Client) refreshAccessToken(ctx context.Context) error {
	var token tokenResponse
	resp, err := c.authClient.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"client_id":     c.cfg.Nest.ClientID,
			"client_secret": c.cfg.Nest.ClientSecret,
			"refresh_token": c.cfg.Nest.RefreshToken,
			"grant_type":    "refresh_token",
		}).
		SetResult(&token).
		Post("")

	if err != nil {
		return &AuthError{Err: err}
	}
	if resp.IsError() {
		return &AuthError{Err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode())}
	}
	if token.AccessToken == "" {
		return &AuthError{Err: fmt.Errorf("token endpoint returned empty access_token")}
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Debug("Nest access token refreshed",
		zap.Time("expires_at", c.tokenExpiry),
	)

	return nil
}

// ensureValidToken 确保 access token 有效，必要时刷新
func (c *Client) ensureValidToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshMargin)) {
		return nil
	}
	return c.refreshAccessToken(ctx)
}

// FetchReadings 获取所有带湿度数据的设备读数
// 认证失败返回 *AuthError，读取失败返回 *FetchError
func (c *Client) FetchReadings(ctx context.Context) ([]models.HumidityReading, error) {
	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	var result devicesResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetResult(&result).
		Get(fmt.Sprintf("/enterprises/%s/devices", c.cfg.Nest.ProjectID))

	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if resp.IsError() {
		return nil, &FetchError{Err: fmt.Errorf("devices endpoint returned status %d", resp.StatusCode())}
	}

	observedAt := time.Now()
	readings := make([]models.HumidityReading, 0, len(result.Devices))
	for _, device := range result.Devices {
		if device.Traits.Humidity == nil {
			continue
		}
		readings = append(readings, models.HumidityReading{
			DeviceID:   deviceIDFromName(device.Name),
			Value:      device.Traits.Humidity.AmbientHumidityPercent,
			ObservedAt: observedAt,
		})
	}

	c.logger.Debug("Fetched humidity readings",
		zap.Int("device_count", len(result.Devices)),
		zap.Int("reading_count", len(readings)),
	)

	return readings, nil
}

// deviceIDFromName 从完整路径提取设备ID
// 如 "enterprises/proj/devices/ID" -> "ID"
func deviceIDFromName(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	return parts[len(parts)-1]
}
