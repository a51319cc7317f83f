package public

import "github.com/parcel-next/internal/provider"

// Handler 用户侧接口处理器入口
// 说明：该处理器仅用于用户侧 API（认证、包裹查询、实时流）。
type Handler struct {
	*provider.Container
}

// New 创建用户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
