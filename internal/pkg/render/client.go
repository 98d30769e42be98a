package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client FFmpeg 客户端
// 封装幻灯片式视频渲染所需的 FFmpeg/FFprobe 命令
type Client struct {
	ffmpegPath  string // FFmpeg 可执行文件路径（默认: ffmpeg）
	ffprobePath string // FFprobe 可执行文件路径（默认: ffprobe）
}

// NewClient 创建 FFmpeg 客户端
func NewClient(ffmpegPath, ffprobePath string) *Client {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Client{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// SceneClipOptions 单场景片段渲染参数
type SceneClipOptions struct {
	DurationSec float64 // 场景时长（秒）
	Width       int
	Height      int
	FPS         int
	Caption     string // 字幕文本，为空则不叠加字幕
	BoxedStyle  bool   // 字幕是否带半透明底框
}

// CreateSceneClip 把一张静态图片渲染为一段无声视频片段
// 图片先缩放裁剪到目标分辨率，再按需叠加 drawtext 字幕
func (c *Client) CreateSceneClip(ctx context.Context, imagePath, outputPath string, opts SceneClipOptions) error {
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", opts.Width, opts.Height),
		fmt.Sprintf("crop=%d:%d", opts.Width, opts.Height),
		"setsar=1",
	}

	if opts.Caption != "" {
		drawtext := fmt.Sprintf(
			"drawtext=text='%s':fontsize=%d:fontcolor=white:x=(w-text_w)/2:y=h-text_h-%d",
			escapeDrawtext(opts.Caption), opts.Height/24, opts.Height/12)
		if opts.BoxedStyle {
			drawtext += ":box=1:boxcolor=black@0.5:boxborderw=12"
		}
		filters = append(filters, drawtext)
	}

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-t", fmt.Sprintf("%.3f", opts.DurationSec),
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", opts.FPS),
		outputPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg scene clip failed: %w", err)
	}

	log.Debug().
		Str("image", imagePath).
		Str("output", outputPath).
		Float64("duration", opts.DurationSec).
		Msg("场景片段渲染完成")

	return nil
}

// ConcatClips 用 concat demuxer 按顺序拼接视频片段
func (c *Client) ConcatClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concat")
	}

	concatListFile := filepath.Join(filepath.Dir(outputPath), fmt.Sprintf("concat_list_%d.txt", time.Now().UnixNano()))

	file, err := os.Create(concatListFile)
	if err != nil {
		return fmt.Errorf("create concat list file: %w", err)
	}
	defer os.Remove(concatListFile)

	for _, clipPath := range clipPaths {
		absPath, err := filepath.Abs(clipPath)
		if err != nil {
			file.Close()
			return fmt.Errorf("get absolute path: %w", err)
		}
		fmt.Fprintf(file, "file '%s'\n", absPath)
	}
	file.Close()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatListFile,
		"-c", "copy", // 同参数片段之间无需重新编码
		outputPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}

	log.Info().
		Int("count", len(clipPaths)).
		Str("output", outputPath).
		Msg("视频拼接完成")

	return nil
}

// OverlayAudio 为视频叠加旁白音轨，可选混入背景音乐
// musicPath 为空时只叠加旁白；输出时长以视频为准
func (c *Client) OverlayAudio(ctx context.Context, videoPath, audioPath, musicPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
	}

	if musicPath != "" {
		args = append(args, "-i", musicPath)
		// 背景音乐压低音量后与旁白混合
		args = append(args,
			"-filter_complex", "[2:a]volume=0.2[bgm];[1:a][bgm]amix=inputs=2:duration=first[aout]",
			"-map", "0:v:0",
			"-map", "[aout]",
		)
	} else {
		args = append(args,
			"-map", "0:v:0",
			"-map", "1:a:0",
		)
	}

	args = append(args,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "160k",
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg audio overlay failed: %w", err)
	}

	log.Info().
		Str("video", videoPath).
		Str("audio", audioPath).
		Str("output", outputPath).
		Msg("音轨叠加完成")

	return nil
}

// ProbeDuration 获取媒体文件时长（秒）
func (c *Client) ProbeDuration(ctx context.Context, mediaPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		mediaPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(probe.Format.Duration, "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}

	return duration, nil
}

// escapeDrawtext 转义 drawtext 滤镜中的特殊字符
func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(text)
}
