package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// 模型输出超过该字节数且仍解析失败时，按"输出超长"单独上报
const rawOutputSizeCeiling = 256 * 1024

// scriptPayload 模型返回的剧本 JSON（临时结构，解析后转换为 story 实体）
type scriptPayload struct {
	Title        string          `json:"title,omitempty"`
	FinalCaption string          `json:"final_caption,omitempty"`
	Voice        *voicePayload   `json:"voice,omitempty"`
	Resolution   string          `json:"resolution,omitempty"` // 模型声明的分辨率，仅供参考，最终以解析值为准
	Scenes       []*scenePayload `json:"scenes"`
}

// voicePayload 临时语音元数据结构
type voicePayload struct {
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
	Tone     string `json:"tone,omitempty"`
}

// scenePayload 临时场景结构
// 模型返回的 scene_number 不解析：批次合并后一律按位置重新编号
type scenePayload struct {
	NarrationText     string            `json:"narration_text"`
	VisualDescription string            `json:"visual_description"`
	ImagePrompt       string            `json:"image_prompt"`
	CharacterTokens   []string          `json:"character_tokens,omitempty"`
	EnvironmentTokens []string          `json:"environment_tokens,omitempty"`
	Timecodes         *timecodesPayload `json:"timecodes,omitempty"`
}

// timecodesPayload 临时时间码结构
type timecodesPayload struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// fencedBlockPattern 匹配 ```json ... ``` 或 ``` ... ``` 包裹的内容
var fencedBlockPattern = regexp.MustCompile(`(?s)^\s*` + "```" + `(?:json)?\s*\n(.*?)\n\s*` + "```" + `\s*$`)

// trailingCommaPattern 匹配对象/数组收尾前的多余逗号
var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// cleanJSONContent 清理模型返回的 JSON 文本
// 移除 markdown 代码块标记，修复常见的格式问题（尾逗号）
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if matches := fencedBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		content = matches[1]
	}

	// 兜底：残留的围栏标记
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 修复尾逗号（模型最常见的 JSON 错误）
	content = trailingCommaPattern.ReplaceAllString(content, "$1")

	return content
}

// parseScriptPayload 解析一次剧本调用的原始输出
// 空文本或解析失败按瞬态错误处理（可重试）；超长且解析失败单独上报
func parseScriptPayload(op, raw string) (*scriptPayload, error) {
	cleaned := cleanJSONContent(raw)
	if cleaned == "" {
		return nil, NewTransientError(op, "empty model output", nil)
	}

	var payload scriptPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		if len(raw) > rawOutputSizeCeiling {
			return nil, NewOutputTooLongError(op, len(raw))
		}
		return nil, NewTransientError(op, fmt.Sprintf("unparseable model output: %v", err), nil)
	}

	if len(payload.Scenes) == 0 {
		return nil, NewTransientError(op, "model output contains no scenes", nil)
	}

	return &payload, nil
}
