package story

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
)

// GetStory 查询作品清单
func (h *Handler) GetStory(c *gin.Context) {
	manifestID := c.Param("id")
	if manifestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "id is required",
		})
		return
	}

	manifest, err := h.storyService.GetStory(c.Request.Context(), manifestID)
	if err != nil {
		status, code := http.StatusInternalServerError, 50001
		if errors.Is(err, storyrepo.ErrManifestNotFound) {
			status, code = http.StatusNotFound, 40401
		}
		c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "获取成功",
		"data":    manifest,
	})
}

// ListStories 查询作品清单列表
// 支持 status 过滤与 limit 限制（默认 20）
func (h *Handler) ListStories(c *gin.Context) {
	status := story.Status(c.Query("status"))

	limit := int64(20)
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.ParseInt(l, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	manifests, err := h.storyService.ListStories(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50001,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "获取成功",
		"data": gin.H{
			"stories": manifests,
			"count":   len(manifests),
		},
	})
}
