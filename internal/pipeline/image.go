package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fable/internal/model/story"
)

const (
	// 发送前的提示词长度上限（字符数）
	promptCharCeiling = 1800

	// 主提示词短于该长度时回退到画面描述/旁白
	minPrimaryPromptLen = 12
)

// qualityModifierSets 风格关键词 → 质量修饰词
// 按声明顺序匹配风格提示，第一个命中的类别生效，否则使用默认修饰词
var qualityModifierSets = []struct {
	category string
	keywords []string
	modifier string
}{
	{
		category: "photographic",
		keywords: []string{"photo", "photograph", "realistic", "cinematic", "film", "实拍", "写实", "电影"},
		modifier: "photorealistic, 35mm photograph, natural lighting, sharp focus, high detail",
	},
	{
		category: "illustrative",
		keywords: []string{"illustration", "watercolor", "storybook", "hand-drawn", "sketch", "插画", "绘本", "水彩"},
		modifier: "storybook illustration, soft edges, warm palette, clean line work, gentle shading",
	},
	{
		category: "stylized",
		keywords: []string{"anime", "cartoon", "comic", "pixel", "3d", "low poly", "国风", "漫画", "动画"},
		modifier: "bold shapes, saturated colors, strong line contrast, dynamic composition",
	},
}

const defaultQualityModifier = "high quality, detailed, coherent composition"

// SceneSeed 从全局种子和场景编号推导场景级确定性种子
// 同一全局种子下重复运行，同一场景得到相同的种子
func SceneSeed(globalSeed int64, sceneNumber int) int64 {
	return globalSeed*1_000_003 + int64(sceneNumber)
}

// ScenePromptBuilder 场景图片提示词构建器
type ScenePromptBuilder struct {
	styleHint string
}

// NewScenePromptBuilder 创建提示词构建器
func NewScenePromptBuilder(styleHint string) *ScenePromptBuilder {
	return &ScenePromptBuilder{styleHint: styleHint}
}

// Build 构建最终图片提示词
// 组成：风格 + 主提示词（缺失/过短时依次回退到画面描述、旁白）+ 角色/环境锚点 + 质量修饰词，
// 超长时截断到固定上限
func (b *ScenePromptBuilder) Build(scene *story.Scene) string {
	var parts []string

	if b.styleHint != "" {
		parts = append(parts, b.styleHint)
	}

	primary := strings.TrimSpace(scene.ImagePrompt)
	if len(primary) < minPrimaryPromptLen {
		primary = strings.TrimSpace(scene.VisualDescription)
	}
	if len(primary) < minPrimaryPromptLen {
		primary = strings.TrimSpace(scene.NarrationText)
	}
	if primary != "" {
		parts = append(parts, primary)
	}

	// 一致性锚点：每个场景的提示词都注入相同的角色/环境短语
	if len(scene.CharacterTokens) > 0 {
		parts = append(parts, "featuring "+strings.Join(scene.CharacterTokens, ", "))
	}
	if len(scene.EnvironmentTokens) > 0 {
		parts = append(parts, "set in "+strings.Join(scene.EnvironmentTokens, ", "))
	}

	parts = append(parts, b.qualityModifier())

	prompt := strings.Join(parts, ". ")
	if len(prompt) > promptCharCeiling {
		prompt = prompt[:promptCharCeiling]
	}
	return prompt
}

// qualityModifier 按风格关键词选择质量修饰词，第一个命中的类别生效
func (b *ScenePromptBuilder) qualityModifier() string {
	style := strings.ToLower(b.styleHint)
	for _, set := range qualityModifierSets {
		for _, kw := range set.keywords {
			if strings.Contains(style, kw) {
				return set.modifier
			}
		}
	}
	return defaultQualityModifier
}

// ImageSynthesizer 场景图片合成器
type ImageSynthesizer struct {
	provider ImageProvider
}

// NewImageSynthesizer 创建场景图片合成器
func NewImageSynthesizer(provider ImageProvider) *ImageSynthesizer {
	return &ImageSynthesizer{provider: provider}
}

// ImageOptions 单场景图片生成参数
type ImageOptions struct {
	Seed        int64             // 全局随机种子
	StyleHint   string            // 风格提示
	AspectRatio story.AspectRatio // 画面宽高比
}

// Generate 为一个场景生成图片，返回图片句柄
// 致命错误（权限/配额/referrer 配置）原样上抛，不重试，
// 让调用方提示用户修配置而不是重试一个注定失败的请求
func (s *ImageSynthesizer) Generate(ctx context.Context, scene *story.Scene, opts ImageOptions) (string, error) {
	req := ImageRequest{
		Prompt:      NewScenePromptBuilder(opts.StyleHint).Build(scene),
		AspectRatio: opts.AspectRatio,
		Seed:        SceneSeed(opts.Seed, scene.SceneNumber),
		Filename:    fmt.Sprintf("scene_%03d.png", scene.SceneNumber),
	}

	// 需要显式宽高的后端按宽高比查表填入像素尺寸，其余后端符号化传宽高比
	if s.provider.RequiresDimensions() {
		w, h := ParseResolution(opts.AspectRatio.Resolution(), 720, 1280)
		req.Width, req.Height = w, h
	}

	handle, err := s.provider.GenerateImage(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate image for scene %d: %w", scene.SceneNumber, err)
	}
	return handle, nil
}

// ParseResolution 解析 "宽x高" 形式的分辨率字符串
// 缺失或格式异常时回退到给定默认值
func ParseResolution(resolution string, defaultW, defaultH int) (int, int) {
	parts := strings.SplitN(strings.ToLower(resolution), "x", 2)
	if len(parts) != 2 {
		return defaultW, defaultH
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return defaultW, defaultH
	}
	return w, h
}
