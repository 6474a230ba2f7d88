package imagegen

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
	ErrConfigInvalid   = errors.New("imagegen config invalid")
	ErrRequestFailed   = errors.New("imagegen request failed")
	ErrResponseInvalid = errors.New("imagegen response invalid")
)

// Config 图像生成服务配置
type Config struct {
	BaseURL        string `json:"base_url"`        // 服务地址
	APIKey         string `json:"api_key"`         // API Key
	Model          string `json:"model"`           // 模型名称
	ImageSize      string `json:"image_size"`      // 生成图片尺寸
	TimeoutSeconds int    `json:"timeout_seconds"` // 请求超时秒数
}

// Result 生成结果
type Result struct {
	ImageURL      string // 图片地址（临时地址，归档后替换）
	RevisedPrompt string // 模型改写后的提示词
}

// Client 图像生成客户端
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient 创建图像生成客户端
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Generate 根据提示词与风格生成设计图
func (c *Client) Generate(ctx context.Context, prompt, style string) (*Result, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return nil, ErrConfigInvalid
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrConfigInvalid)
	}

	payload := map[string]interface{}{
		"prompt": prompt,
		"model":  c.cfg.Model,
		"size":   c.cfg.ImageSize,
	}
	if style != "" {
		payload["style"] = style
	}

	respBytes, err := c.postJSON(ctx, "/v1/images/generations", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			URL           string `json:"url"`
			RevisedPrompt string `json:"revised_prompt"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, fmt.Errorf("%w: empty image data", ErrResponseInvalid)
	}

	return &Result{
		ImageURL:      resp.Data[0].URL,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
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
