package story

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	storyrepo "fable/internal/repository/story"
)

// GenerateAudioRequest 生成旁白音频请求
type GenerateAudioRequest struct {
	VoiceID string `json:"voice_id"` // 覆盖剧本指定的音色（可选）
}

// GenerateAudio 为作品合成旁白语音并拼接为单个音频
// 任务在后台执行，完成后音频 URL 写入清单
func (h *Handler) GenerateAudio(c *gin.Context) {
	manifestID := c.Param("id")
	if manifestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "id is required",
		})
		return
	}

	var req GenerateAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 空请求体允许，使用剧本指定的音色
		req = GenerateAudioRequest{}
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
		if _, err := h.storyService.GenerateAudio(context.Background(), manifestID, req.VoiceID); err != nil {
			log.Error().Err(err).Str("manifest_id", manifestID).Msg("后台音频合成任务失败")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"code":    0,
		"message": "音频合成任务已提交",
		"data":    gin.H{"id": manifestID},
	})
}
