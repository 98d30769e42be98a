package pipeline

import (
	"context"
	"fmt"
	"strings"

	"fable/internal/model/story"
)

const (
	// 过滤后场景数不超过该阈值时一次渲染，否则按固定块大小分块
	chunkSceneMax = 10

	defaultVideoWidth  = 720
	defaultVideoHeight = 1280
)

// VideoAssembler 视频合成器
// 分块渲染时各块为静音，合并后的旁白音轨只在最终拼接一步整体叠加
// （不按块边界切分音频——场景时间码是建议值，不可信，见 DESIGN.md）
type VideoAssembler struct {
	renderer RenderProvider
	state    *JobState
}

// NewVideoAssembler 创建视频合成器
func NewVideoAssembler(renderer RenderProvider, state *JobState) *VideoAssembler {
	return &VideoAssembler{renderer: renderer, state: state}
}

// Assemble 把已合成的场景与音轨装配为最终视频，返回视频句柄
// 无图场景不贡献时间线；任一块渲染失败则整体失败，不返回部分视频
func (a *VideoAssembler) Assemble(ctx context.Context, m *story.Manifest, audioURL, musicURL string) (string, error) {
	scenes := renderableScenes(m.Scenes)
	if len(scenes) == 0 {
		return "", fmt.Errorf("no scenes with generated images, nothing to assemble")
	}

	width, height := defaultVideoWidth, defaultVideoHeight
	if m.Output != nil {
		width, height = ParseResolution(m.Output.Resolution, defaultVideoWidth, defaultVideoHeight)
	}

	captions := &story.CaptionStyle{Enabled: true, Style: "boxed"}
	if m.Output != nil && m.Output.Captions != nil {
		captions = m.Output.Captions
	}

	sceneDurationMS := 5000
	if m.Output != nil && m.Output.SceneDurationSec > 0 {
		sceneDurationMS = int(m.Output.SceneDurationSec * 1000)
	}

	a.state.AddLog("assembling video: %d scenes at %dx%d", len(scenes), width, height)

	// 小于分块阈值：单次渲染，音轨直接带上
	if len(scenes) <= chunkSceneMax {
		handle, err := a.renderer.RenderScenes(ctx, RenderRequest{
			Scenes:          scenes,
			AudioURL:        audioURL,
			SceneDurationMS: sceneDurationMS,
			Width:           width,
			Height:          height,
			MusicURL:        musicURL,
			Captions:        captions,
		})
		if err != nil {
			return "", fmt.Errorf("render video: %w", err)
		}
		return handle, nil
	}

	// 分块渲染：固定块大小，每块静音渲染，全部成功后拼接并叠加音轨
	var chunkHandles []string
	totalChunks := (len(scenes) + chunkSceneMax - 1) / chunkSceneMax
	for i := 0; i < len(scenes); i += chunkSceneMax {
		end := i + chunkSceneMax
		if end > len(scenes) {
			end = len(scenes)
		}
		chunkIdx := i/chunkSceneMax + 1
		startMin := float64(i*sceneDurationMS) / 60000

		handle, err := a.renderer.RenderScenes(ctx, RenderRequest{
			Scenes:          scenes[i:end],
			SceneDurationMS: sceneDurationMS,
			Width:           width,
			Height:          height,
			Captions:        captions,
		})
		if err != nil {
			// 任何一块失败都放弃整个合成，错误里点名失败的块和大致分钟位置
			return "", fmt.Errorf("render chunk %d/%d (around minute %.0f): %w", chunkIdx, totalChunks, startMin, err)
		}
		chunkHandles = append(chunkHandles, handle)
		a.state.AddLog("chunk %d/%d rendered", chunkIdx, totalChunks)
	}

	final, err := a.renderer.ConcatenateVideos(ctx, chunkHandles, width, height, audioURL)
	if err != nil {
		return "", fmt.Errorf("concatenate %d chunks: %w", len(chunkHandles), err)
	}
	return final, nil
}

// renderableScenes 按清单顺序收集有真实图片的场景
// 无图或占位图的场景不进入时间线
func renderableScenes(scenes []*story.Scene) []RenderScene {
	out := make([]RenderScene, 0, len(scenes))
	for _, scene := range scenes {
		if scene.GeneratedImageURL == "" || strings.Contains(scene.GeneratedImageURL, "placehold") {
			continue
		}
		out = append(out, RenderScene{
			ImageURL: scene.GeneratedImageURL,
			Caption:  scene.NarrationText,
		})
	}
	return out
}
