package story

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"fable/internal/pipeline"
)

// Events 作品进度的 SSE 事件流
// 订阅后立即推送一次当前快照，此后每次状态变更推送一次；
// 作品进入终态或客户端断开时结束
func (h *Handler) Events(c *gin.Context) {
	manifestID := c.Param("id")
	if manifestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "id is required",
		})
		return
	}

	state := h.storyService.JobStateFor(manifestID)
	if state == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    40402,
			Message: "story is not running, use the status endpoint instead",
		})
		return
	}

	// 带缓冲通道解耦广播器与网络写出；慢消费者丢弃中间快照，只保证最终快照可达
	events := make(chan pipeline.Snapshot, 16)
	unsubscribe := state.Subscribe(func(snap pipeline.Snapshot) {
		select {
		case events <- snap:
		default:
		}
	})
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case snap := <-events:
			c.SSEvent("snapshot", snap)
			return !snap.Status.Terminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}
