package shop

import "github.com/teelab-next/internal/provider"

// Handler 店面接口处理器入口
// 说明：该处理器仅用于用户、游客侧 API。
type Handler struct {
	*provider.Container
}

// New 创建店面处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
