package story

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	"fable/internal/config"
	"fable/internal/model/story"
	"fable/internal/pipeline"
	"fable/internal/pipeline/providers"
	"fable/internal/pkg/ark"
	"fable/internal/pkg/cache"
	"fable/internal/pkg/render"
	"fable/internal/pkg/speech"
	"fable/internal/pkg/storage"
	"fable/internal/pkg/t2p"
	storyrepo "fable/internal/repository/story"
)

// Providers 各外部能力的客户端集合
// ArkImage 与 T2P 按 image.backend 配置二选一，未用到的可为 nil
type Providers struct {
	ChatModel model.ChatModel
	ArkImage  *ark.ImageClient
	T2P       *t2p.Client
	Speech    *speech.Client
	Render    *render.Client
}

// StoryService 作品生成服务
// 编排完整流水线：创意 → 多场景剧本 → 逐场景图片 → 旁白语音 → 视频装配
// 每个作品持有独立的任务状态广播器，进度经 Redis 快照对外可轮询
type StoryService struct {
	cfg   *config.Config
	repo  storyrepo.ManifestRepository
	store storage.Storage
	cache *cache.RedisCache // 可为 nil（不写快照）
	prov  Providers

	mu   sync.Mutex
	jobs map[string]*pipeline.JobState
}

// NewStoryService 创建作品生成服务
func NewStoryService(
	cfg *config.Config,
	repo storyrepo.ManifestRepository,
	store storage.Storage,
	cache *cache.RedisCache,
	prov Providers,
) *StoryService {
	return &StoryService{
		cfg:   cfg,
		repo:  repo,
		store: store,
		cache: cache,
		prov:  prov,
		jobs:  make(map[string]*pipeline.JobState),
	}
}

// CreateStoryRequest 创建作品请求
type CreateStoryRequest struct {
	Idea          string             `json:"idea" binding:"required"`
	Mode          story.Mode         `json:"mode"`
	Tier          story.DurationTier `json:"duration"`
	AspectRatio   story.AspectRatio  `json:"aspect_ratio"`
	Seed          int64              `json:"seed"`
	StyleHint     string             `json:"style_hint"`
	ReferenceHint string             `json:"reference_hint"`
	VoiceID       string             `json:"voice_id"`
}

// CreateStory 根据一句话创意生成完整场景剧本并落库
// 同步执行（长篇分批时可能持续数分钟），返回时剧本已就绪
func (s *StoryService) CreateStory(ctx context.Context, req CreateStoryRequest) (*story.Manifest, error) {
	if s.prov.ChatModel == nil {
		return nil, fmt.Errorf("chat model is not configured")
	}

	mode := req.Mode
	if mode == "" {
		mode = story.ModeShortVideo
	}
	tier := req.Tier
	if tier == "" {
		tier = story.Tier1Minute
	}
	ratio := req.AspectRatio
	if ratio == "" {
		ratio = story.AspectPortrait
	}
	seed := req.Seed
	if seed == 0 {
		// 未指定种子时随机，指定种子时同一创意可复现同一组画面
		seed = time.Now().UnixNano() % 1_000_000_000
	}

	state := pipeline.NewJobState()
	generator := pipeline.NewScriptGenerator(
		providers.NewEinoTextProvider(s.prov.ChatModel),
		state,
		providers.NewRepoManifestPersister(s.repo),
		s.pipelineOptions(),
	)

	manifest, err := generator.Generate(ctx, pipeline.ScriptRequest{
		Idea:          req.Idea,
		Mode:          mode,
		Tier:          tier,
		AspectRatio:   ratio,
		Seed:          seed,
		StyleHint:     req.StyleHint,
		ReferenceHint: req.ReferenceHint,
		VoiceID:       req.VoiceID,
	})
	if err != nil {
		return nil, err
	}

	s.adoptJobState(manifest.ID, state)

	if err := s.repo.Upsert(ctx, manifest); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}

	log.Info().
		Str("manifest_id", manifest.ID).
		Int("scenes", len(manifest.Scenes)).
		Str("tier", string(tier)).
		Msg("剧本生成完成")

	return manifest, nil
}

// GenerateImages 为作品的全部场景生成图片
// 已有图片的场景跳过（幂等）；瞬态失败只跳过该场景，致命错误立即终止
func (s *StoryService) GenerateImages(ctx context.Context, manifestID string) error {
	m, err := s.repo.FindByID(ctx, manifestID)
	if err != nil {
		return err
	}

	imgProvider, err := s.imageProvider(manifestID)
	if err != nil {
		return err
	}

	state := s.jobState(manifestID)
	s.setStage(ctx, state, m, story.StatusImagesProcessing)

	synthesizer := pipeline.NewImageSynthesizer(imgProvider)
	opts := pipeline.ImageOptions{
		Seed:        m.Seed,
		StyleHint:   m.StyleHint,
		AspectRatio: m.AspectRatio,
	}

	total := len(m.Scenes)
	done := 0
	failed := 0
	state.Update(pipeline.Patch{ImagesTotal: &total, ImagesDone: &done, Manifest: m})

	for _, scene := range m.Scenes {
		if scene.GeneratedImageURL != "" {
			done++
			state.Update(pipeline.Patch{ImagesDone: &done})
			continue
		}

		url, genErr := synthesizer.Generate(ctx, scene, opts)
		if genErr != nil {
			if pipeline.IsFatal(genErr) {
				s.failStage(ctx, state, m, genErr)
				return genErr
			}
			failed++
			state.AddLog("scene %d image failed, skipping: %v", scene.SceneNumber, genErr)
			log.Warn().Err(genErr).Int("scene", scene.SceneNumber).Msg("场景图片生成失败，跳过")
			continue
		}

		scene.GeneratedImageURL = url
		done++
		m.UpdatedAt = time.Now()
		state.Update(pipeline.Patch{ImagesDone: &done, Manifest: m})

		// 逐场景落库，中断后可从已完成处继续
		if err := s.repo.Upsert(ctx, m); err != nil {
			log.Warn().Err(err).Str("manifest_id", m.ID).Msg("场景图片检查点落库失败")
		}
	}

	state.AddLog("images done: %d/%d ready, %d failed", done, total, failed)
	if err := s.repo.Upsert(ctx, m); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	log.Info().
		Str("manifest_id", m.ID).
		Int("done", done).
		Int("failed", failed).
		Msg("场景图片生成完成")

	return nil
}

// GenerateAudio 为作品合成旁白语音并拼接为单个 WAV
// voiceOverride 非空时覆盖剧本指定的音色；返回音频 URL
func (s *StoryService) GenerateAudio(ctx context.Context, manifestID, voiceOverride string) (string, error) {
	if s.prov.Speech == nil {
		return "", fmt.Errorf("speech client is not configured")
	}

	m, err := s.repo.FindByID(ctx, manifestID)
	if err != nil {
		return "", err
	}

	state := s.jobState(manifestID)
	s.setStage(ctx, state, m, story.StatusAudioProcessing)

	synthesizer := pipeline.NewSpeechSynthesizer(providers.NewSpeechClientProvider(s.prov.Speech), state)
	artifact, err := synthesizer.SynthesizeAll(ctx, m, voiceOverride)
	if err != nil {
		s.failStage(ctx, state, m, err)
		return "", err
	}

	key := storage.AssetKey(m.ID, "narration.wav")
	url, err := s.store.Upload(ctx, key, bytes.NewReader(artifact.WAV), "audio/wav")
	if err != nil {
		uploadErr := fmt.Errorf("upload narration audio: %w", err)
		s.failStage(ctx, state, m, uploadErr)
		return "", uploadErr
	}

	m.GeneratedAudioURL = url
	m.UpdatedAt = time.Now()
	if err := s.repo.Upsert(ctx, m); err != nil {
		return "", fmt.Errorf("save manifest: %w", err)
	}

	state.Update(pipeline.Patch{Manifest: m})
	state.AddLog("audio ready: %d segments, %.1fs actual (%.1fs estimated)",
		artifact.Segments, artifact.DurationSec, artifact.EstimatedSec)

	log.Info().
		Str("manifest_id", m.ID).
		Int("segments", artifact.Segments).
		Float64("duration_sec", artifact.DurationSec).
		Msg("旁白音频合成完成")

	return url, nil
}

// AssembleVideo 把场景图片与旁白音轨装配为最终视频
// musicURL 非空时混入背景音乐；成功后状态置为 completed
func (s *StoryService) AssembleVideo(ctx context.Context, manifestID, musicURL string) (string, error) {
	if s.prov.Render == nil {
		return "", fmt.Errorf("render client is not configured")
	}

	m, err := s.repo.FindByID(ctx, manifestID)
	if err != nil {
		return "", err
	}

	state := s.jobState(manifestID)
	s.setStage(ctx, state, m, story.StatusAssembling)

	frameRate := 0
	if m.Output != nil {
		frameRate = m.Output.FrameRate
	}
	renderProvider := providers.NewFFmpegRenderProvider(
		s.prov.Render, s.store, m.ID, s.cfg.Render.WorkDir, frameRate)

	assembler := pipeline.NewVideoAssembler(renderProvider, state)
	url, err := assembler.Assemble(ctx, m, m.GeneratedAudioURL, musicURL)
	if err != nil {
		s.failStage(ctx, state, m, err)
		return "", err
	}

	m.GeneratedVideoURL = url
	m.Status = story.StatusCompleted
	m.UpdatedAt = time.Now()
	if err := s.repo.Upsert(ctx, m); err != nil {
		return "", fmt.Errorf("save manifest: %w", err)
	}

	completed := story.StatusCompleted
	state.Update(pipeline.Patch{Status: &completed, VideoURL: &url, Manifest: m})
	state.AddLog("video assembled: %s", url)

	log.Info().
		Str("manifest_id", m.ID).
		Str("video_url", url).
		Msg("视频装配完成")

	return url, nil
}

// Generate 一口气跑完整条流水线（创建 → 图片 → 语音 → 装配）
// 供 CLI 一次性生成使用；任一阶段失败立即返回
func (s *StoryService) Generate(ctx context.Context, req CreateStoryRequest) (*story.Manifest, error) {
	m, err := s.CreateStory(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.GenerateImages(ctx, m.ID); err != nil {
		return nil, err
	}
	if _, err := s.GenerateAudio(ctx, m.ID, req.VoiceID); err != nil {
		return nil, err
	}
	if _, err := s.AssembleVideo(ctx, m.ID, ""); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, m.ID)
}

// GetStory 查询作品清单
func (s *StoryService) GetStory(ctx context.Context, manifestID string) (*story.Manifest, error) {
	return s.repo.FindByID(ctx, manifestID)
}

// ListStories 按状态查询作品清单列表
func (s *StoryService) ListStories(ctx context.Context, status story.Status, limit int64) ([]*story.Manifest, error) {
	return s.repo.List(ctx, status, limit)
}

// GetStatus 查询作品的实时状态快照
// 优先取运行内广播器，其次 Redis 快照，最后回退到落库的清单镜像
func (s *StoryService) GetStatus(ctx context.Context, manifestID string) (*pipeline.Snapshot, error) {
	s.mu.Lock()
	state, ok := s.jobs[manifestID]
	s.mu.Unlock()
	if ok {
		snap := state.Snapshot()
		return &snap, nil
	}

	if s.cache != nil {
		var snap pipeline.Snapshot
		if err := s.cache.Get(ctx, cache.JobSnapshotKey(manifestID), &snap); err == nil {
			return &snap, nil
		}
	}

	m, err := s.repo.FindByID(ctx, manifestID)
	if err != nil {
		return nil, err
	}
	return &pipeline.Snapshot{
		Status:   m.Status,
		Manifest: m,
		VideoURL: m.GeneratedVideoURL,
	}, nil
}

// JobStateFor 返回作品的任务状态广播器（供 SSE 订阅）
// 作品不在运行中时返回 nil
func (s *StoryService) JobStateFor(manifestID string) *pipeline.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[manifestID]
}

// jobState 取出或创建作品的任务状态广播器
func (s *StoryService) jobState(manifestID string) *pipeline.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.jobs[manifestID]; ok {
		return state
	}
	state := pipeline.NewJobState()
	s.registerLocked(manifestID, state)
	return state
}

// adoptJobState 把剧本生成期间使用的广播器登记到运行表
func (s *StoryService) adoptJobState(manifestID string, state *pipeline.JobState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[manifestID]; ok {
		return
	}
	s.registerLocked(manifestID, state)
}

// registerLocked 登记广播器并挂接 Redis 快照订阅（持锁调用）
func (s *StoryService) registerLocked(manifestID string, state *pipeline.JobState) {
	s.jobs[manifestID] = state
	if s.cache == nil {
		return
	}
	state.Subscribe(func(snap pipeline.Snapshot) {
		// 订阅回调在持锁状态下同步执行，缓存写入必须异步
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, cache.JobSnapshotKey(manifestID), snap, cache.JobSnapshotTTL); err != nil {
				log.Warn().Err(err).Str("manifest_id", manifestID).Msg("任务快照写入 Redis 失败")
			}
		}()
	})
}

// setStage 同步更新广播器状态与落库的状态镜像
func (s *StoryService) setStage(ctx context.Context, state *pipeline.JobState, m *story.Manifest, status story.Status) {
	state.Update(pipeline.Patch{Status: &status, Manifest: m})
	m.Status = status
	m.UpdatedAt = time.Now()
	if err := s.repo.Upsert(ctx, m); err != nil {
		log.Warn().Err(err).Str("manifest_id", m.ID).Msg("阶段状态落库失败")
	}
}

// failStage 记录失败状态（广播器 + 落库镜像）
func (s *StoryService) failStage(ctx context.Context, state *pipeline.JobState, m *story.Manifest, err error) {
	state.Fail(err.Error())
	m.Status = story.StatusFailed
	m.UpdatedAt = time.Now()
	if upErr := s.repo.Upsert(ctx, m); upErr != nil {
		log.Warn().Err(upErr).Str("manifest_id", m.ID).Msg("失败状态落库失败")
	}
}

// imageProvider 按配置选择图片生成后端
func (s *StoryService) imageProvider(manifestID string) (pipeline.ImageProvider, error) {
	switch s.cfg.Image.Backend {
	case "t2p":
		if s.prov.T2P == nil {
			return nil, fmt.Errorf("t2p backend selected but client is not configured")
		}
		return providers.NewT2PImageProvider(s.prov.T2P, s.store, manifestID), nil
	case "ark", "":
		if s.prov.ArkImage == nil {
			return nil, fmt.Errorf("ark backend selected but client is not configured")
		}
		return providers.NewArkImageProvider(s.prov.ArkImage, s.store, manifestID), nil
	default:
		return nil, fmt.Errorf("unsupported image backend: %s", s.cfg.Image.Backend)
	}
}

// pipelineOptions 从配置读取流水线调节参数
func (s *StoryService) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		CallTimeout:   s.cfg.Pipeline.CallTimeout,
		BatchCooldown: s.cfg.Pipeline.BatchCooldown,
		MaxRetries:    s.cfg.Pipeline.MaxRetries,
	}
}
