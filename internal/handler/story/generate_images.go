package story

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	storyrepo "fable/internal/repository/story"
)

// GenerateImages 为作品的全部场景生成图片
// 任务在后台执行，进度通过状态查询接口或 SSE 事件流观察
func (h *Handler) GenerateImages(c *gin.Context) {
	manifestID := c.Param("id")
	if manifestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "id is required",
		})
		return
	}

	// 先确认作品存在，再提交后台任务
	if _, err := h.storyService.GetStory(c.Request.Context(), manifestID); err != nil {
		status, code := http.StatusInternalServerError, 50001
		if errors.Is(err, storyrepo.ErrManifestNotFound) {
			status, code = http.StatusNotFound, 40401
		}
		c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
		return
	}

	go func() {
		if err := h.storyService.GenerateImages(context.Background(), manifestID); err != nil {
			log.Error().Err(err).Str("manifest_id", manifestID).Msg("后台图片生成任务失败")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"code":    0,
		"message": "图片生成任务已提交",
		"data":    gin.H{"id": manifestID},
	})
}
