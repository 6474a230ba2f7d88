package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConfigInvalid   = errors.New("printer config invalid")
	ErrRequestFailed   = errors.New("printer request failed")
	ErrResponseInvalid = errors.New("printer response invalid")
)

// Config 按需印制合作方配置
type Config struct {
	BaseURL        string `json:"base_url"`        // 服务地址
	APIKey         string `json:"api_key"`         // API Key
	TimeoutSeconds int    `json:"timeout_seconds"` // 请求超时秒数
}

// SubmitInput 提交交付单输入
type SubmitInput struct {
	OrderNo   string
	VariantID string
	Quantity  int
	ImageURL  string
	Address   map[string]interface{}
}

// SubmitResult 提交交付单结果
type SubmitResult struct {
	PartnerOrderID string
}

// StatusResult 合作方交付状态
type StatusResult struct {
	Status         string
	TrackingNumber string
	TrackingURL    string
}

// Client 按需印制合作方客户端
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient 创建按需印制合作方客户端
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Submit 提交交付单
func (c *Client) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return nil, ErrConfigInvalid
	}
	if input.OrderNo == "" || input.VariantID == "" || input.ImageURL == "" {
		return nil, fmt.Errorf("%w: order no, variant id and image url are required", ErrConfigInvalid)
	}
	quantity := input.Quantity
	if quantity < 1 {
		quantity = 1
	}

	payload := map[string]interface{}{
		"external_id": input.OrderNo,
		"recipient":   input.Address,
		"items": []map[string]interface{}{{
			"variant_id": input.VariantID,
			"quantity":   quantity,
			"files": []map[string]interface{}{{
				"url": input.ImageURL,
			}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	respBytes, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.Result.ID == "" {
		return nil, fmt.Errorf("%w: empty partner order id", ErrResponseInvalid)
	}
	return &SubmitResult{PartnerOrderID: resp.Result.ID}, nil
}

// GetStatus 查询交付单当前状态与物流信息
func (c *Client) GetStatus(ctx context.Context, partnerOrderID string) (*StatusResult, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return nil, ErrConfigInvalid
	}
	if partnerOrderID == "" {
		return nil, fmt.Errorf("%w: partner order id is required", ErrConfigInvalid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/orders/"+partnerOrderID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	respBytes, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			Status    string `json:"status"`
			Shipments []struct {
				TrackingNumber string `json:"tracking_number"`
				TrackingURL    string `json:"tracking_url"`
			} `json:"shipments"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}

	result := &StatusResult{Status: strings.ToLower(resp.Result.Status)}
	if len(resp.Result.Shipments) > 0 {
		result.TrackingNumber = resp.Result.Shipments[0].TrackingNumber
		result.TrackingURL = resp.Result.Shipments[0].TrackingURL
	}
	return result, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
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
