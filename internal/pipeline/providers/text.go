package providers

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"fable/internal/pipeline"
)

// EinoTextProvider Eino 封装的文本生成提供者（默认使用）
// 使用 chatmodel.New 创建的 ChatModel（openai / azure / ark）
// 实现了 pipeline.TextProvider 接口
type EinoTextProvider struct {
	chatModel model.ChatModel
}

// NewEinoTextProvider 创建基于 Eino 的文本生成提供者
func NewEinoTextProvider(chatModel model.ChatModel) *EinoTextProvider {
	return &EinoTextProvider{chatModel: chatModel}
}

// GenerateText 根据提示词生成文本
// 系统指令与 schema 提示合并为 system message，提示词为 user message
func (p *EinoTextProvider) GenerateText(ctx context.Context, req pipeline.TextRequest) (string, error) {
	if p.chatModel == nil {
		return "", pipeline.NewConfigurationError("generate_text", "chatModel is required", nil)
	}

	var messages []*schema.Message

	system := req.SystemInstruction
	if req.SchemaHint != "" {
		system = strings.TrimSpace(system + "\n\n" + req.SchemaHint)
	}
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	response, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", pipeline.ClassifyProviderError("generate_text", err)
	}

	if response.Content == "" {
		return "", pipeline.NewTransientError("generate_text", "empty response from chat model", nil)
	}

	return response.Content, nil
}
