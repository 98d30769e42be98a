package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"fable/internal/pipeline"
	"fable/internal/pkg/id"
	"fable/internal/pkg/render"
	"fable/internal/pkg/storage"
)

// 渲染默认帧率
const defaultFrameRate = 30

// FFmpegRenderProvider FFmpeg 渲染提供者
// 图片/音频句柄从存储拉到本地临时目录，渲染结果再写回存储
// 实现了 pipeline.RenderProvider 接口
type FFmpegRenderProvider struct {
	client     *render.Client
	store      storage.Storage
	manifestID string
	workDir    string
	frameRate  int
}

// NewFFmpegRenderProvider 创建 FFmpeg 渲染提供者
// workDir 为空时使用系统临时目录，frameRate 为 0 时使用默认帧率
func NewFFmpegRenderProvider(client *render.Client, store storage.Storage, manifestID, workDir string, frameRate int) *FFmpegRenderProvider {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}

	return &FFmpegRenderProvider{
		client:     client,
		store:      store,
		manifestID: manifestID,
		workDir:    workDir,
		frameRate:  frameRate,
	}
}

// RenderScenes 把（图片+字幕）序列渲染成一段视频，返回视频句柄
func (p *FFmpegRenderProvider) RenderScenes(ctx context.Context, req pipeline.RenderRequest) (string, error) {
	tempDir, err := os.MkdirTemp(p.workDir, "render_")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	captionsEnabled := req.Captions != nil && req.Captions.Enabled
	boxed := captionsEnabled && req.Captions.Style == "boxed"

	clipPaths := make([]string, 0, len(req.Scenes))
	for i, scene := range req.Scenes {
		imagePath := filepath.Join(tempDir, fmt.Sprintf("image_%03d.png", i))
		if err := p.fetchToFile(ctx, scene.ImageURL, imagePath); err != nil {
			return "", fmt.Errorf("fetch scene %d image: %w", i+1, err)
		}

		caption := ""
		if captionsEnabled {
			caption = scene.Caption
		}

		clipPath := filepath.Join(tempDir, fmt.Sprintf("clip_%03d.mp4", i))
		err := p.client.CreateSceneClip(ctx, imagePath, clipPath, render.SceneClipOptions{
			DurationSec: float64(req.SceneDurationMS) / 1000.0,
			Width:       req.Width,
			Height:      req.Height,
			FPS:         p.frameRate,
			Caption:     caption,
			BoxedStyle:  boxed,
		})
		if err != nil {
			return "", pipeline.ClassifyProviderError("render_scenes", err)
		}
		clipPaths = append(clipPaths, clipPath)
	}

	videoPath := filepath.Join(tempDir, "chunk.mp4")
	if err := p.client.ConcatClips(ctx, clipPaths, videoPath); err != nil {
		return "", pipeline.ClassifyProviderError("render_scenes", err)
	}

	if req.AudioURL != "" {
		videoPath, err = p.overlayAudio(ctx, tempDir, videoPath, req.AudioURL, req.MusicURL)
		if err != nil {
			return "", err
		}
	}

	return p.uploadVideo(ctx, videoPath)
}

// ConcatenateVideos 把多段视频按顺序拼接为一段，可选叠加音轨
func (p *FFmpegRenderProvider) ConcatenateVideos(ctx context.Context, handles []string, width, height int, audioURL string) (string, error) {
	tempDir, err := os.MkdirTemp(p.workDir, "concat_")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	chunkPaths := make([]string, 0, len(handles))
	for i, handle := range handles {
		chunkPath := filepath.Join(tempDir, fmt.Sprintf("chunk_%03d.mp4", i))
		if err := p.fetchToFile(ctx, handle, chunkPath); err != nil {
			return "", fmt.Errorf("fetch chunk %d: %w", i+1, err)
		}
		chunkPaths = append(chunkPaths, chunkPath)
	}

	videoPath := filepath.Join(tempDir, "combined.mp4")
	if err := p.client.ConcatClips(ctx, chunkPaths, videoPath); err != nil {
		return "", pipeline.ClassifyProviderError("concatenate_videos", err)
	}

	if audioURL != "" {
		videoPath, err = p.overlayAudio(ctx, tempDir, videoPath, audioURL, "")
		if err != nil {
			return "", err
		}
	}

	return p.uploadVideo(ctx, videoPath)
}

// overlayAudio 拉取音轨并叠加到视频上
func (p *FFmpegRenderProvider) overlayAudio(ctx context.Context, tempDir, videoPath, audioURL, musicURL string) (string, error) {
	audioPath := filepath.Join(tempDir, "narration.wav")
	if err := p.fetchToFile(ctx, audioURL, audioPath); err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}

	musicPath := ""
	if musicURL != "" {
		musicPath = filepath.Join(tempDir, "music.mp3")
		if err := p.fetchToFile(ctx, musicURL, musicPath); err != nil {
			// 背景音乐拉取失败不终止渲染
			log.Warn().Err(err).Str("music_url", musicURL).Msg("背景音乐拉取失败，跳过混音")
			musicPath = ""
		}
	}

	withAudioPath := filepath.Join(tempDir, "with_audio.mp4")
	if err := p.client.OverlayAudio(ctx, videoPath, audioPath, musicPath, withAudioPath); err != nil {
		return "", pipeline.ClassifyProviderError("overlay_audio", err)
	}
	return withAudioPath, nil
}

// uploadVideo 把渲染结果写入存储并返回 URL
func (p *FFmpegRenderProvider) uploadVideo(ctx context.Context, videoPath string) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("open rendered video: %w", err)
	}
	defer file.Close()

	filename := fmt.Sprintf("render_%s.mp4", id.Short())
	key := storage.AssetKey(p.manifestID, filename)
	url, err := p.store.Upload(ctx, key, file, storage.ContentTypeFor(filename))
	if err != nil {
		return "", fmt.Errorf("upload video %s: %w", key, err)
	}

	log.Info().
		Str("manifest_id", p.manifestID).
		Str("key", key).
		Msg("渲染结果已写入存储")

	return url, nil
}

// fetchToFile 把产物句柄的内容拉到本地文件
// 句柄包含存储键前缀时优先走存储，否则按 HTTP URL 拉取
func (p *FFmpegRenderProvider) fetchToFile(ctx context.Context, handle, destPath string) error {
	var reader io.ReadCloser

	if idx := strings.Index(handle, "stories/"); idx != -1 {
		rc, err := p.store.Download(ctx, handle[idx:])
		if err != nil {
			return err
		}
		reader = rc
	} else if strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, handle, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("fetch %s: status %d", handle, resp.StatusCode)
		}
		reader = resp.Body
	} else {
		rc, err := p.store.Download(ctx, handle)
		if err != nil {
			return err
		}
		reader = rc
	}
	defer reader.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(destPath)
		return err
	}
	return nil
}
