package admin

import "github.com/parcel-next/internal/provider"

// Handler 管理端处理器集合
type Handler struct {
	*provider.Container
}

// New 创建管理端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
