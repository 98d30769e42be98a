package story

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	storyrepo "fable/internal/repository/story"
)

// GetStatus 查询作品的实时状态快照
// 运行中的作品取运行内广播器，否则回退到 Redis 快照或落库镜像
func (h *Handler) GetStatus(c *gin.Context) {
	manifestID := c.Param("id")
	if manifestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "id is required",
		})
		return
	}

	snapshot, err := h.storyService.GetStatus(c.Request.Context(), manifestID)
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
		"data":    snapshot,
	})
}
