package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-ego/gse"
	"github.com/rs/zerolog/log"

	"fable/internal/model/story"
	"fable/internal/pkg/wav"
)

const (
	// 语音合成并发批大小：一批内并行发起，批间插入短暂停顿
	speechBatchSize = 5

	interBatchPause   = 500 * time.Millisecond
	speechCallTimeout = 60 * time.Second

	// 旁白语速估算常量：词数 / 每秒词数 ≈ 总时长
	wordsPerSecond = 2.5
)

// AudioArtifact 语音合成与拼接的结果
type AudioArtifact struct {
	WAV          []byte  // 合并后的完整 WAV（单头 + 连续 PCM）
	DurationSec  float64 // 按 PCM 字节数计算的实际时长
	EstimatedSec float64 // 按词数估算的时长（无其他时长信号时使用）
	Segments     int     // 成功合成的场景段数
}

// SpeechSynthesizer 语音合成器 + 音频拼接器
// 按固定并发批合成旁白，单场景失败只记日志不中断（尽力而为），
// 全部完成后剥头拼接 PCM 并重新包一个头，产出单个可播放音频
type SpeechSynthesizer struct {
	tts   SpeechProvider
	state *JobState

	segOnce   sync.Once
	segmenter *gse.Segmenter
	segErr    error
}

// NewSpeechSynthesizer 创建语音合成器
func NewSpeechSynthesizer(tts SpeechProvider, state *JobState) *SpeechSynthesizer {
	return &SpeechSynthesizer{tts: tts, state: state}
}

// SynthesizeAll 为清单的全部旁白合成语音并拼接
// voiceOverride 非空时覆盖清单的音色；只有所有场景全部失败才报错
func (s *SpeechSynthesizer) SynthesizeAll(ctx context.Context, m *story.Manifest, voiceOverride string) (*AudioArtifact, error) {
	voiceID := voiceOverride
	if voiceID == "" && m.Voice != nil {
		voiceID = m.Voice.VoiceID
	}

	scenes := m.Scenes
	results := make([][]byte, len(scenes))

	for start := 0; start < len(scenes); start += speechBatchSize {
		end := start + speechBatchSize
		if end > len(scenes) {
			end = len(scenes)
		}

		// 批内并行合成
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if strings.TrimSpace(scenes[i].NarrationText) == "" {
				continue
			}
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				blob, err := s.synthesizeScene(ctx, scenes[idx], voiceID)
				if err != nil {
					// 单场景失败吞掉：该场景不贡献音频
					s.state.AddLog("speech for scene %d failed, skipping: %v", scenes[idx].SceneNumber, err)
					log.Warn().Err(err).Int("scene", scenes[idx].SceneNumber).Msg("scene speech synthesis failed")
					return
				}
				results[idx] = blob
			}(i)
		}
		wg.Wait()

		s.state.AddLog("speech batch %d-%d done", start+1, end)

		if end < len(scenes) {
			select {
			case <-ctx.Done():
				return nil, NewTransientError("synthesize speech", "cancelled between batches", ctx.Err())
			case <-time.After(interBatchPause):
			}
		}
	}

	// 按场景顺序收集成功段
	segments := make([][]byte, 0, len(results))
	for _, blob := range results {
		if blob != nil {
			segments = append(segments, blob)
		}
	}
	if len(segments) == 0 {
		return nil, &Error{Kind: KindTransient, Op: "synthesize speech",
			Msg: "all scene narrations failed, no audio produced"}
	}

	merged, err := wav.Merge(segments)
	if err != nil {
		return nil, NewTransientError("assemble audio", "merge wav segments", err)
	}

	artifact := &AudioArtifact{
		WAV:          merged,
		DurationSec:  wav.Duration(len(merged)-wav.HeaderSize, wav.DefaultSampleRate, wav.DefaultChannels, wav.DefaultBitsPerSample),
		EstimatedSec: s.EstimateNarrationSeconds(m),
		Segments:     len(segments),
	}
	s.state.AddLog("audio assembled: %d/%d segments, %.1fs", len(segments), len(scenes), artifact.DurationSec)
	return artifact, nil
}

// synthesizeScene 合成单个场景的旁白（带超时）
func (s *SpeechSynthesizer) synthesizeScene(ctx context.Context, scene *story.Scene, voiceID string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, speechCallTimeout)
	defer cancel()

	blob, err := s.tts.SynthesizeSpeech(callCtx, scene.NarrationText, voiceID)
	if err != nil {
		return nil, err
	}
	// 合成结果必须是合法 WAV，否则后续剥头拼接会把坏数据混进整条音轨
	if _, err := wav.ParseHeader(blob); err != nil {
		return nil, NewTransientError("synthesize speech", "provider returned invalid wav", err)
	}
	return blob, nil
}

// EstimateNarrationSeconds 按词数估算全部旁白的时长
// 词数统计：中日韩文本用 gse 分词，其余按空白切分；分词器初始化失败时整体回退空白切分
func (s *SpeechSynthesizer) EstimateNarrationSeconds(m *story.Manifest) float64 {
	var words int
	for _, scene := range m.Scenes {
		words += s.countWords(scene.NarrationText)
	}
	return float64(words) / wordsPerSecond
}

// countWords 统计一段文本的词数
func (s *SpeechSynthesizer) countWords(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	if containsCJK(text) {
		s.segOnce.Do(func() {
			seg, err := gse.New()
			if err != nil {
				s.segErr = err
				log.Warn().Err(err).Msg("init gse segmenter failed, falling back to whitespace split")
				return
			}
			s.segmenter = &seg
		})
		if s.segErr == nil && s.segmenter != nil {
			return len(s.segmenter.Cut(text, true))
		}
	}

	return len(strings.Fields(text))
}

// containsCJK 判断文本是否包含中日韩字符
func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
