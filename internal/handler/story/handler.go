package story

import (
	httputil "fable/internal/pkg/http"
	storyservice "fable/internal/service/story"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// Handler 作品生成处理器
type Handler struct {
	storyService *storyservice.StoryService
}

// NewHandler 创建作品生成处理器
func NewHandler(storyService *storyservice.StoryService) *Handler {
	return &Handler{storyService: storyService}
}
