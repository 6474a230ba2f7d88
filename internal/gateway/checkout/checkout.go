package checkout

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrConfigInvalid    = errors.New("checkout config invalid")
	ErrRequestFailed    = errors.New("checkout request failed")
	ErrResponseInvalid  = errors.New("checkout response invalid")
	ErrSignatureInvalid = errors.New("checkout webhook signature invalid")
)

// Config 托管收银台服务配置
type Config struct {
	BaseURL        string `json:"base_url"`        // 服务地址
	APIKey         string `json:"api_key"`         // API Key
	WebhookSecret  string `json:"webhook_secret"`  // 回调签名密钥
	SuccessURL     string `json:"success_url"`     // 支付成功跳转地址
	CancelURL      string `json:"cancel_url"`      // 取消支付跳转地址
	TimeoutSeconds int    `json:"timeout_seconds"` // 请求超时秒数
}

// CreateSessionInput 创建支付会话输入
type CreateSessionInput struct {
	OrderID     uint
	OrderNo     string
	AmountCents int64
	Currency    string
	Description string
}

// Session 支付会话
type Session struct {
	ID  string
	URL string
}

// WebhookEvent 支付回调事件
type WebhookEvent struct {
	SessionID string `json:"session_id"`
	PaymentID string `json:"payment_id"`
	OrderID   uint   `json:"order_id"`
	Paid      bool   `json:"paid"`
}

// Client 托管收银台客户端
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient 创建托管收银台客户端
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// CreateSession 创建支付会话，订单 ID 写入会话元数据供回调映射
func (c *Client) CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return nil, ErrConfigInvalid
	}
	if input.OrderID == 0 || input.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: order id and amount are required", ErrConfigInvalid)
	}

	payload := map[string]interface{}{
		"amount":      input.AmountCents,
		"currency":    strings.ToLower(input.Currency),
		"description": input.Description,
		"success_url": c.cfg.SuccessURL,
		"cancel_url":  c.cfg.CancelURL,
		"metadata": map[string]interface{}{
			"order_id": input.OrderID,
			"order_no": input.OrderNo,
		},
	}
	respBytes, err := c.postJSON(ctx, "/v1/checkout/sessions", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.ID == "" || resp.URL == "" {
		return nil, fmt.Errorf("%w: empty session", ErrResponseInvalid)
	}
	return &Session{ID: resp.ID, URL: resp.URL}, nil
}

// GetSession 查询支付会话（用于复用仍有效的会话）
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return nil, ErrConfigInvalid
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrConfigInvalid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if result.Status != "open" {
		return nil, nil
	}
	return &Session{ID: result.ID, URL: result.URL}, nil
}

// VerifySignature 校验回调签名（HMAC-SHA256）
func (c *Client) VerifySignature(payload []byte, signature string) error {
	if c.cfg.WebhookSecret == "" {
		return ErrConfigInvalid
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseWebhook 解析回调数据
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	if len(body) == 0 {
		return nil, ErrResponseInvalid
	}
	var raw struct {
		Type string `json:"type"`
		Data struct {
			SessionID string `json:"session_id"`
			PaymentID string `json:"payment_id"`
			Metadata  struct {
				OrderID uint `json:"order_id"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &WebhookEvent{
		SessionID: raw.Data.SessionID,
		PaymentID: raw.Data.PaymentID,
		OrderID:   raw.Data.Metadata.OrderID,
		Paid:      raw.Type == "checkout.session.completed",
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
