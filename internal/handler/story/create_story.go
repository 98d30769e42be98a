package story

import (
	"net/http"

	"github.com/gin-gonic/gin"

	storyservice "fable/internal/service/story"
)

// CreateStory 根据一句话创意生成完整场景剧本
// 同步执行，长篇档位分批生成时响应时间较长
func (h *Handler) CreateStory(c *gin.Context) {
	var req storyservice.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	manifest, err := h.storyService.CreateStory(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50001,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "剧本生成完成",
		"data":    manifest,
	})
}
