package pipeline

import (
	"fmt"
	"strings"

	"fable/internal/model/story"
)

// scriptSystemInstruction 返回剧本生成的系统指令
func scriptSystemInstruction(mode story.Mode) string {
	if mode == story.ModeStorybook {
		return "You are a children's storybook author and art director. " +
			"You write warm, rhythmic narration and describe gentle, picture-book illustrations."
	}
	return "You are a professional short-form video scriptwriter. " +
		"You write punchy spoken narration and vivid, filmable scene descriptions."
}

// scriptSchemaHint 返回期望输出的 JSON 结构提示
// 首批需要标题/结尾文案/语音元数据，续批只需要场景数组
func scriptSchemaHint(firstBatch bool) string {
	if firstBatch {
		return `{"title": string, "final_caption": string, ` +
			`"voice": {"voice_id": string, "language": string, "tone": string}, ` +
			`"scenes": [{"narration_text": string, "visual_description": string, "image_prompt": string, ` +
			`"character_tokens": [string], "environment_tokens": [string], ` +
			`"timecodes": {"start": number, "end": number}}]}`
	}
	return `{"scenes": [{"narration_text": string, "visual_description": string, "image_prompt": string, ` +
		`"character_tokens": [string], "environment_tokens": [string], ` +
		`"timecodes": {"start": number, "end": number}}]}`
}

// buildScriptPrompt 构造一批场景的提示词
func buildScriptPrompt(req ScriptRequest, start, count int, continuity, resolution string) string {
	var b strings.Builder

	if req.Mode == story.ModeStorybook {
		b.WriteString("Write part of an illustrated storybook based on the idea below.\n\n")
	} else {
		b.WriteString("Write part of a narrated short video based on the idea below.\n\n")
	}

	b.WriteString("【输出格式要求 - 必须严格遵守】\n")
	b.WriteString("1. 输出必须是单个有效 JSON 对象，以 { 开头、} 结尾\n")
	b.WriteString("2. 不要使用 markdown 代码块标记（不要 ```json 或 ```）\n")
	b.WriteString("3. 不要输出任何解释或额外文字，只输出 JSON\n")
	b.WriteString("4. 数组和对象的最后一个元素后不要有逗号\n")
	b.WriteString("5. 所有键名和字符串值使用双引号\n\n")

	fmt.Fprintf(&b, "Idea: %s\n", req.Idea)
	if req.StyleHint != "" {
		fmt.Fprintf(&b, "Visual style: %s\n", req.StyleHint)
	}
	if req.ReferenceHint != "" {
		fmt.Fprintf(&b, "Reference material: %s\n", req.ReferenceHint)
	}
	fmt.Fprintf(&b, "Output resolution: %s (advisory, fixed by the caller)\n\n", resolution)

	fmt.Fprintf(&b, "Write exactly %d scenes, covering scene positions %d to %d of the overall story.\n",
		count, start, start+count-1)
	fmt.Fprintf(&b, "Narrative context: %s\n\n", continuity)

	b.WriteString("【内容要求】\n")
	b.WriteString("1. narration_text：每个场景 1-2 句可朗读的旁白（20-50 词），与上文自然衔接\n")
	b.WriteString("2. visual_description：画面内容的客观描述\n")
	b.WriteString("3. image_prompt：用于文生图的英文提示词，包含场景、主体、构图与光线\n")
	b.WriteString("4. character_tokens / environment_tokens：2-4 个跨场景保持一致的角色/环境短语锚点，")
	b.WriteString("同一角色、同一环境在所有场景中使用完全相同的短语\n")
	b.WriteString("5. timecodes：按场景顺序估算的起止秒数（建议值）\n")
	if start == 1 {
		b.WriteString("6. title：不超过 60 字符的标题；final_caption：不超过 120 字符的结尾文案\n")
		b.WriteString("7. voice：推荐的音色ID、语言与语气\n")
	}

	return b.String()
}
