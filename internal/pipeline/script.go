package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"fable/internal/model/story"
	"fable/internal/pkg/id"
)

const (
	// 目标场景数不超过该阈值时一次调用生成全部场景，否则分批
	singleCallSceneMax = 15

	// 分批生成时每批请求的场景数
	scriptBatchSize = 5

	defaultCallTimeout   = 120 * time.Second
	defaultBatchCooldown = 2 * time.Second
	defaultMaxRetries    = 3

	// 首次重试延迟，之后按退避递增
	retryBaseDelay = 2 * time.Second

	defaultFrameRate        = 30
	defaultSceneDurationSec = 5.0
)

// ScriptRequest 剧本生成请求
type ScriptRequest struct {
	Idea          string             // 一句话创意
	Mode          story.Mode         // 作品形态
	Tier          story.DurationTier // 时长档位
	AspectRatio   story.AspectRatio  // 画面宽高比
	Seed          int64              // 全局随机种子
	StyleHint     string             // 画面风格提示（可选）
	ReferenceHint string             // 参考素材提示（可选）
	VoiceID       string             // 指定音色（可选）
}

// Options 流水线调节参数，零值使用默认常量
type Options struct {
	CallTimeout   time.Duration
	BatchCooldown time.Duration
	MaxRetries    int
}

func (o Options) callTimeout() time.Duration {
	if o.CallTimeout > 0 {
		return o.CallTimeout
	}
	return defaultCallTimeout
}

func (o Options) batchCooldown() time.Duration {
	if o.BatchCooldown > 0 {
		return o.BatchCooldown
	}
	return defaultBatchCooldown
}

func (o Options) maxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return defaultMaxRetries
}

// ScriptGenerator 剧本生成器
// 只负责组装 prompt、调用注入的文本 provider 并合并批次结果，
// 不落库、不依赖 HTTP；进度通过 JobState 持续可见
type ScriptGenerator struct {
	text    TextProvider
	state   *JobState
	persist ManifestPersister // 可为 nil（无检查点）
	opts    Options
}

// NewScriptGenerator 创建剧本生成器
func NewScriptGenerator(text TextProvider, state *JobState, persist ManifestPersister, opts Options) *ScriptGenerator {
	return &ScriptGenerator{
		text:    text,
		state:   state,
		persist: persist,
		opts:    opts,
	}
}

// Generate 生成完整的场景清单
// 目标场景数与输出分辨率在开头一次性解析，后续阶段只复用解析结果；
// 长篇分批生成时每合并一批就更新 JobState，使进度可被增量观察
func (g *ScriptGenerator) Generate(ctx context.Context, req ScriptRequest) (*story.Manifest, error) {
	if strings.TrimSpace(req.Idea) == "" {
		return nil, fmt.Errorf("idea is empty")
	}

	sceneCount, ok := req.Tier.SceneCount()
	if !ok {
		return nil, fmt.Errorf("unknown duration tier: %s", req.Tier)
	}
	if !req.AspectRatio.Valid() {
		return nil, fmt.Errorf("unknown aspect ratio: %s", req.AspectRatio)
	}
	resolution := req.AspectRatio.Resolution()

	manifest := &story.Manifest{
		ID:          id.New(),
		Idea:        req.Idea,
		Mode:        req.Mode,
		Tier:        req.Tier,
		AspectRatio: req.AspectRatio,
		Seed:        req.Seed,
		StyleHint:   req.StyleHint,
		Status:      story.StatusCreated,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	g.state.Update(Patch{Manifest: manifest})
	g.state.AddLog("script generation started: %d scenes (%s, %s)", sceneCount, req.Tier, req.AspectRatio)

	var err error
	if sceneCount <= singleCallSceneMax {
		err = g.generateSingle(ctx, req, manifest, sceneCount, resolution)
	} else {
		err = g.generateBatched(ctx, req, manifest, sceneCount, resolution)
	}
	if err != nil {
		g.state.Fail(err.Error())
		return nil, err
	}

	// 强制使用解析出的分辨率：模型返回的 resolution 仅供参考
	g.forceOutputSettings(manifest, resolution)
	g.fillTimecodes(manifest)

	ready := story.StatusStoryReady
	manifest.Status = ready
	manifest.UpdatedAt = time.Now()
	g.state.Update(Patch{Status: &ready, Manifest: manifest})
	g.state.AddLog("script ready: %d scenes", len(manifest.Scenes))
	g.checkpoint(manifest)

	return manifest, nil
}

// generateSingle 单次调用生成全部场景
func (g *ScriptGenerator) generateSingle(ctx context.Context, req ScriptRequest, manifest *story.Manifest, sceneCount int, resolution string) error {
	payload, err := g.callBatchWithRetry(ctx, req, 1, sceneCount, "start of video", resolution)
	if err != nil {
		return err
	}

	g.mergeBatch(manifest, payload)
	return nil
}

// generateBatched 分批生成长篇剧本
// 每批带续写上下文（首批为"start of video"，之后为上一批最后一句旁白），
// 成功后按全局位置重新编号并合并，批间插入冷却时间以规避厂商限流
func (g *ScriptGenerator) generateBatched(ctx context.Context, req ScriptRequest, manifest *story.Manifest, sceneCount int, resolution string) error {
	continuity := "start of video"
	batches := (sceneCount + scriptBatchSize - 1) / scriptBatchSize

	for batch := 0; batch < batches; batch++ {
		start := batch*scriptBatchSize + 1
		count := scriptBatchSize
		if remaining := sceneCount - batch*scriptBatchSize; remaining < count {
			count = remaining
		}

		payload, err := g.callBatchWithRetry(ctx, req, start, count, continuity, resolution)
		if err != nil {
			if IsFatal(err) {
				// 致命错误立即终止整轮，已累积的场景保留在 JobState 中
				return err
			}
			// 重试额度耗尽：提前结束批次循环，保留已累积的场景
			g.state.AddLog("batch %d/%d failed after retries, stopping early: %v", batch+1, batches, err)
			log.Warn().Err(err).Int("batch", batch+1).Msg("script batch exhausted retries")
			break
		}

		g.mergeBatch(manifest, payload)
		manifest.UpdatedAt = time.Now()
		g.state.Update(Patch{Manifest: manifest})
		g.state.AddLog("batch %d/%d merged, %d scenes so far", batch+1, batches, len(manifest.Scenes))
		g.checkpoint(manifest)

		if last := manifest.Scenes[len(manifest.Scenes)-1]; last.NarrationText != "" {
			continuity = last.NarrationText
		}

		// 批间冷却（最后一批不需要）
		if batch < batches-1 {
			select {
			case <-ctx.Done():
				return NewTransientError("generate script", "cancelled during batch cooldown", ctx.Err())
			case <-time.After(g.opts.batchCooldown()):
			}
		}
	}

	if len(manifest.Scenes) == 0 {
		return fmt.Errorf("script generation produced no scenes")
	}
	return nil
}

// callBatchWithRetry 带重试地请求一批场景
// 瞬态错误按递增延迟重试至上限；致命错误不重试直接上抛
func (g *ScriptGenerator) callBatchWithRetry(ctx context.Context, req ScriptRequest, start, count int, continuity, resolution string) (*scriptPayload, error) {
	return retry.DoWithData(
		func() (*scriptPayload, error) {
			return g.callBatch(ctx, req, start, count, continuity, resolution)
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.opts.maxRetries())),
		retry.Delay(retryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !IsFatal(err) }),
		retry.OnRetry(func(n uint, err error) {
			g.state.AddLog("script batch retry %d: %v", n+1, err)
		}),
	)
}

// callBatch 请求一批场景（单次调用，带超时）
func (g *ScriptGenerator) callBatch(ctx context.Context, req ScriptRequest, start, count int, continuity, resolution string) (*scriptPayload, error) {
	op := fmt.Sprintf("generate script scenes %d-%d", start, start+count-1)

	callCtx, cancel := context.WithTimeout(ctx, g.opts.callTimeout())
	defer cancel()

	raw, err := g.text.GenerateText(callCtx, TextRequest{
		Prompt:            buildScriptPrompt(req, start, count, continuity, resolution),
		SystemInstruction: scriptSystemInstruction(req.Mode),
		SchemaHint:        scriptSchemaHint(start == 1),
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, NewTransientError(op, fmt.Sprintf("timed out after %s", g.opts.callTimeout()), err)
		}
		return nil, err
	}

	return parseScriptPayload(op, raw)
}

// mergeBatch 合并一批场景进清单并按全局位置重新编号
// 模型返回的编号不可信，最终编号一律由位置推导，保证 1..N 连续
func (g *ScriptGenerator) mergeBatch(manifest *story.Manifest, payload *scriptPayload) {
	// 标题等元数据以第一批为准
	if manifest.Title == "" && payload.Title != "" {
		manifest.Title = payload.Title
	}
	if manifest.FinalCaption == "" && payload.FinalCaption != "" {
		manifest.FinalCaption = payload.FinalCaption
	}
	if manifest.Voice == nil && payload.Voice != nil {
		manifest.Voice = &story.VoiceInstruction{
			VoiceID:  payload.Voice.VoiceID,
			Language: payload.Voice.Language,
			Tone:     payload.Voice.Tone,
		}
	}

	for _, sp := range payload.Scenes {
		scene := &story.Scene{
			NarrationText:     strings.TrimSpace(sp.NarrationText),
			VisualDescription: strings.TrimSpace(sp.VisualDescription),
			ImagePrompt:       strings.TrimSpace(sp.ImagePrompt),
			CharacterTokens:   sp.CharacterTokens,
			EnvironmentTokens: sp.EnvironmentTokens,
		}
		if sp.Timecodes != nil {
			scene.Timecodes = &story.Timecodes{Start: sp.Timecodes.Start, End: sp.Timecodes.End}
		}
		manifest.Scenes = append(manifest.Scenes, scene)
	}

	for i, scene := range manifest.Scenes {
		scene.SceneNumber = i + 1
	}
}

// forceOutputSettings 写入解析出的输出参数，覆盖模型的返回值
func (g *ScriptGenerator) forceOutputSettings(manifest *story.Manifest, resolution string) {
	captions := &story.CaptionStyle{Enabled: true, Style: "boxed"}
	if manifest.Output != nil && manifest.Output.Captions != nil {
		captions = manifest.Output.Captions
	}
	manifest.Output = &story.OutputSettings{
		Resolution:       resolution,
		FrameRate:        defaultFrameRate,
		SceneDurationSec: defaultSceneDurationSec,
		Captions:         captions,
	}
}

// fillTimecodes 为缺失时间码的场景按默认时长顺序补齐（建议值，不按实际音频重算）
func (g *ScriptGenerator) fillTimecodes(manifest *story.Manifest) {
	dur := manifest.Output.SceneDurationSec
	for i, scene := range manifest.Scenes {
		if scene.Timecodes == nil {
			scene.Timecodes = &story.Timecodes{
				Start: float64(i) * dur,
				End:   float64(i+1) * dur,
			}
		}
	}
}

// checkpoint 写后即忘的落库检查点，失败只记日志
func (g *ScriptGenerator) checkpoint(manifest *story.Manifest) {
	if g.persist == nil {
		return
	}
	go func(m *story.Manifest) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.persist.PersistManifest(ctx, m); err != nil {
			log.Warn().Err(err).Str("manifest_id", m.ID).Msg("persist manifest checkpoint failed")
		}
	}(manifest)
}
