package pipeline

import (
	"context"

	"fable/internal/model/story"
)

// TextProvider 文本生成提供者接口
// 具体的「如何调用大模型」由调用方通过实现此接口注入，方便单测和替换实现
type TextProvider interface {
	// GenerateText 根据提示词生成文本
	// 返回的原始文本由调用方负责解析（剥离 markdown 代码块后按 JSON 解析）
	//
	// Args:
	//   - ctx: 上下文
	//   - req: 提示词、系统指令与 schema 提示
	//
	// Returns:
	//   - rawText: 模型返回的原始文本
	//   - err: 错误信息（已在 provider 边界分类）
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// TextRequest 文本生成请求
type TextRequest struct {
	Prompt            string // 提示词
	SystemInstruction string // 系统指令
	SchemaHint        string // 期望输出的 JSON 结构提示
}

// ImageProvider 图片生成提供者接口
// 统一抽象 Ark 与 T2P 两种图片生成后端
type ImageProvider interface {
	// GenerateImage 生成图片并返回图片句柄（URL）
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)

	// RequiresDimensions 后端是否需要显式像素宽高
	// 为 true 时编排层按宽高比查表填入 Width/Height，否则只传 AspectRatio
	RequiresDimensions() bool
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Prompt      string
	AspectRatio story.AspectRatio // 符号化宽高比（RequiresDimensions 为 false 时使用）
	Width       int               // 显式宽高（RequiresDimensions 为 true 时使用）
	Height      int
	Seed        int64  // 场景级确定性种子
	Filename    string // 输出文件名（用于标识与存储 key）
}

// SpeechProvider 语音合成提供者接口
type SpeechProvider interface {
	// SynthesizeSpeech 合成一段旁白语音
	// 返回完整 WAV（固定头 + 24kHz 单声道 16bit PCM）
	SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error)
}

// RenderScene 渲染输入中的一个场景
type RenderScene struct {
	ImageURL string // 场景图片句柄
	Caption  string // 字幕文本（旁白）
}

// RenderRequest 渲染请求
type RenderRequest struct {
	Scenes          []RenderScene
	AudioURL        string // 旁白音轨句柄（可为空，分块渲染时中间块为静音）
	SceneDurationMS int    // 单场景时长（毫秒）
	Width           int
	Height          int
	MusicURL        string              // 背景音乐句柄（可为空）
	Captions        *story.CaptionStyle // 字幕设置
}

// RenderProvider 渲染/拼接提供者接口
type RenderProvider interface {
	// RenderScenes 把（图片+字幕）序列渲染成一段视频，返回视频句柄
	RenderScenes(ctx context.Context, req RenderRequest) (string, error)

	// ConcatenateVideos 把多段视频按顺序拼接为一段，可选叠加音轨
	ConcatenateVideos(ctx context.Context, handles []string, width, height int, audioURL string) (string, error)
}

// ManifestPersister 清单落库钩子（写后即忘的检查点）
// 落库失败只记日志，不影响流水线本身的正确性
type ManifestPersister interface {
	PersistManifest(ctx context.Context, m *story.Manifest) error
}
