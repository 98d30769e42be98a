package story

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	storyrepo "fable/internal/repository/story"
)

// AssembleVideoRequest 视频装配请求
type AssembleVideoRequest struct {
	MusicURL string `json:"music_url"` // 背景音乐句柄（可选）
}

// AssembleVideo 把场景图片与旁白音轨装配为最终视频
// 任务在后台执行，成功后状态置为 completed 并写入视频 URL
func (h *Handler) AssembleVideo(c *gin.Context) {
	manifestID := c.Param("id")
	if manifestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "id is required",
		})
		return
	}

	var req AssembleVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 空请求体允许，不混背景音乐
		req = AssembleVideoRequest{}
	}

	if _, err := h.storyService.GetStory(c.Request.Context(), manifestID); err != nil {
		status, code := http.StatusInternalServerError, 50001
		if errors.Is(err, storyrepo.ErrManifestNotFound) {
			status, code = http.StatusNotFound, 40401
		}
		c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
		return
	}

	go func() {
		if _, err := h.storyService.AssembleVideo(context.Background(), manifestID, req.MusicURL); err != nil {
			log.Error().Err(err).Str("manifest_id", manifestID).Msg("后台视频装配任务失败")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"code":    0,
		"message": "视频装配任务已提交",
		"data":    gin.H{"id": manifestID},
	})
}
