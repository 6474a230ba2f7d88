package storage

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
)

var (
	ErrConfigInvalid   = errors.New("storage config invalid")
	ErrRequestFailed   = errors.New("storage request failed")
	ErrResponseInvalid = errors.New("storage response invalid")
)

// Config 持久化存储服务配置
type Config struct {
	BaseURL        string `json:"base_url"`        // 服务地址
	APIKey         string `json:"api_key"`         // API Key
	Bucket         string `json:"bucket"`          // 存储桶
	TimeoutSeconds int    `json:"timeout_seconds"` // 请求超时秒数
}

// Client 持久化存储客户端
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient 创建持久化存储客户端
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

// Archive 将临时图片地址转存为持久地址
func (c *Client) Archive(ctx context.Context, sourceURL, key string) (string, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return "", ErrConfigInvalid
	}
	if strings.TrimSpace(sourceURL) == "" || strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: source url and key are required", ErrConfigInvalid)
	}

	payload := map[string]interface{}{
		"source_url": sourceURL,
		"key":        key,
		"bucket":     c.cfg.Bucket,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/archive", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("%w: empty durable url", ErrResponseInvalid)
	}
	return result.URL, nil
}
