package providers

import (
	"context"

	"fable/internal/pipeline"
	"fable/internal/pkg/speech"
)

// SpeechClientProvider openspeech 语音合成提供者
// 实现了 pipeline.SpeechProvider 接口
type SpeechClientProvider struct {
	client *speech.Client
}

// NewSpeechClientProvider 创建语音合成提供者
func NewSpeechClientProvider(client *speech.Client) *SpeechClientProvider {
	return &SpeechClientProvider{client: client}
}

// SynthesizeSpeech 合成一段旁白语音，返回完整 WAV 字节
func (p *SpeechClientProvider) SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	wavData, err := p.client.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, pipeline.ClassifyProviderError("synthesize_speech", err)
	}
	return wavData, nil
}
