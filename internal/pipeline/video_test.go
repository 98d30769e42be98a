package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/model/story"
)

// fakeRenderProvider 记录渲染请求的渲染 provider
type fakeRenderProvider struct {
	renderCalls []RenderRequest
	concatCalls [][]string
	concatAudio string
	failOnCall  int // 第 N 次 RenderScenes 调用失败（0 表示不失败）
}

func (f *fakeRenderProvider) RenderScenes(_ context.Context, req RenderRequest) (string, error) {
	f.renderCalls = append(f.renderCalls, req)
	if f.failOnCall > 0 && len(f.renderCalls) == f.failOnCall {
		return "", errors.New("ffmpeg exited with code 1")
	}
	return fmt.Sprintf("http://example.com/chunk_%d.mp4", len(f.renderCalls)), nil
}

func (f *fakeRenderProvider) ConcatenateVideos(_ context.Context, handles []string, _, _ int, audioURL string) (string, error) {
	f.concatCalls = append(f.concatCalls, handles)
	f.concatAudio = audioURL
	return "http://example.com/final.mp4", nil
}

// imagedManifest 构造 n 个带图场景的清单
func imagedManifest(n int) *story.Manifest {
	m := &story.Manifest{
		Output: &story.OutputSettings{
			Resolution:       "720x1280",
			FrameRate:        30,
			SceneDurationSec: 5.0,
			Captions:         &story.CaptionStyle{Enabled: true, Style: "boxed"},
		},
	}
	for i := 1; i <= n; i++ {
		m.Scenes = append(m.Scenes, &story.Scene{
			SceneNumber:       i,
			NarrationText:     fmt.Sprintf("scene %d narration", i),
			GeneratedImageURL: fmt.Sprintf("http://example.com/scene_%03d.png", i),
		})
	}
	return m
}

func TestVideoAssemblerSinglePass(t *testing.T) {
	Convey("场景数不超过分块阈值时单次渲染", t, func() {
		renderer := &fakeRenderProvider{}
		assembler := NewVideoAssembler(renderer, NewJobState())

		m := imagedManifest(8)
		handle, err := assembler.Assemble(context.Background(), m, "http://example.com/narration.wav", "http://example.com/bgm.mp3")

		So(err, ShouldBeNil)
		So(handle, ShouldEqual, "http://example.com/chunk_1.mp4")
		So(len(renderer.renderCalls), ShouldEqual, 1)
		So(len(renderer.concatCalls), ShouldEqual, 0)

		req := renderer.renderCalls[0]
		So(len(req.Scenes), ShouldEqual, 8)
		So(req.AudioURL, ShouldEqual, "http://example.com/narration.wav")
		So(req.MusicURL, ShouldEqual, "http://example.com/bgm.mp3")
		So(req.Width, ShouldEqual, 720)
		So(req.Height, ShouldEqual, 1280)
		So(req.SceneDurationMS, ShouldEqual, 5000)
		So(req.Captions.Style, ShouldEqual, "boxed")
		So(req.Scenes[2].Caption, ShouldEqual, "scene 3 narration")
	})
}

func TestVideoAssemblerChunked(t *testing.T) {
	Convey("长篇分块渲染后统一拼接", t, func() {
		renderer := &fakeRenderProvider{}
		assembler := NewVideoAssembler(renderer, NewJobState())

		m := imagedManifest(25)
		handle, err := assembler.Assemble(context.Background(), m, "http://example.com/narration.wav", "")

		So(err, ShouldBeNil)
		So(handle, ShouldEqual, "http://example.com/final.mp4")

		Convey("25 个场景按块大小 10 切成 3 块", func() {
			So(len(renderer.renderCalls), ShouldEqual, 3)
			So(len(renderer.renderCalls[0].Scenes), ShouldEqual, 10)
			So(len(renderer.renderCalls[1].Scenes), ShouldEqual, 10)
			So(len(renderer.renderCalls[2].Scenes), ShouldEqual, 5)
		})

		Convey("中间块静音渲染，音轨只在拼接时整体叠加", func() {
			for _, call := range renderer.renderCalls {
				So(call.AudioURL, ShouldBeEmpty)
			}
			So(renderer.concatAudio, ShouldEqual, "http://example.com/narration.wav")
			So(renderer.concatCalls[0], ShouldResemble, []string{
				"http://example.com/chunk_1.mp4",
				"http://example.com/chunk_2.mp4",
				"http://example.com/chunk_3.mp4",
			})
		})
	})
}

func TestVideoAssemblerChunkFailure(t *testing.T) {
	Convey("任一块渲染失败则整体失败", t, func() {
		renderer := &fakeRenderProvider{failOnCall: 2}
		assembler := NewVideoAssembler(renderer, NewJobState())

		_, err := assembler.Assemble(context.Background(), imagedManifest(25), "", "")

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "chunk 2/3")
		So(err.Error(), ShouldContainSubstring, "minute")
		So(len(renderer.concatCalls), ShouldEqual, 0)
	})
}

func TestVideoAssemblerSceneFilter(t *testing.T) {
	Convey("无图和占位图场景不进入时间线", t, func() {
		m := imagedManifest(5)
		m.Scenes[1].GeneratedImageURL = ""
		m.Scenes[3].GeneratedImageURL = "https://placehold.co/720x1280"

		renderer := &fakeRenderProvider{}
		assembler := NewVideoAssembler(renderer, NewJobState())

		_, err := assembler.Assemble(context.Background(), m, "", "")
		So(err, ShouldBeNil)

		req := renderer.renderCalls[0]
		So(len(req.Scenes), ShouldEqual, 3)
		So(req.Scenes[0].Caption, ShouldEqual, "scene 1 narration")
		So(req.Scenes[1].Caption, ShouldEqual, "scene 3 narration")
		So(req.Scenes[2].Caption, ShouldEqual, "scene 5 narration")

		Convey("所有场景都无图时报错", func() {
			for _, scene := range m.Scenes {
				scene.GeneratedImageURL = ""
			}
			_, err := assembler.Assemble(context.Background(), m, "", "")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no scenes with generated images")
		})
	})
}

func TestVideoAssemblerDefaults(t *testing.T) {
	Convey("缺失输出设置时使用默认值", t, func() {
		m := imagedManifest(2)
		m.Output = nil

		renderer := &fakeRenderProvider{}
		assembler := NewVideoAssembler(renderer, NewJobState())

		_, err := assembler.Assemble(context.Background(), m, "", "")
		So(err, ShouldBeNil)

		req := renderer.renderCalls[0]
		So(req.Width, ShouldEqual, 720)
		So(req.Height, ShouldEqual, 1280)
		So(req.SceneDurationMS, ShouldEqual, 5000)
		So(req.Captions.Enabled, ShouldBeTrue)
	})
}
