package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/model/story"
)

// fakeTextProvider 按调用次数返回预设响应的文本 provider
type fakeTextProvider struct {
	mu       sync.Mutex
	calls    int
	requests []TextRequest
	fn       func(call int, req TextRequest) (string, error)
}

func (f *fakeTextProvider) GenerateText(_ context.Context, req TextRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	return f.fn(f.calls, req)
}

// scenesJSON 构造 count 个场景的剧本 JSON，旁白带全局编号便于断言
func scenesJSON(start, count int, withMeta bool) string {
	var b strings.Builder
	b.WriteString("{")
	if withMeta {
		b.WriteString(`"title": "测试剧本", "final_caption": "完", `)
		b.WriteString(`"voice": {"voice_id": "BV115_streaming", "language": "zh", "tone": "平静"}, `)
		b.WriteString(`"resolution": "4096x4096", `)
	}
	b.WriteString(`"scenes": [`)
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		n := start + i
		fmt.Fprintf(&b, `{"scene_number": %d, "narration_text": "scene %d narration", `, n*7, n)
		fmt.Fprintf(&b, `"visual_description": "scene %d visual", "image_prompt": "scene %d prompt"}`, n, n)
	}
	b.WriteString("]}")
	return b.String()
}

func fastOpts() Options {
	return Options{BatchCooldown: time.Millisecond, MaxRetries: 1}
}

func TestScriptGeneratorSinglePass(t *testing.T) {
	Convey("短篇剧本单次调用生成", t, func() {
		provider := &fakeTextProvider{fn: func(call int, _ TextRequest) (string, error) {
			return scenesJSON(1, 6, true), nil
		}}
		state := NewJobState()
		gen := NewScriptGenerator(provider, state, nil, fastOpts())

		m, err := gen.Generate(context.Background(), ScriptRequest{
			Idea:        "一只猫学会了飞行",
			Mode:        story.ModeShortVideo,
			Tier:        story.Tier30Seconds,
			AspectRatio: story.AspectPortrait,
			Seed:        42,
		})

		So(err, ShouldBeNil)
		So(provider.calls, ShouldEqual, 1)
		So(m.Title, ShouldEqual, "测试剧本")
		So(m.FinalCaption, ShouldEqual, "完")
		So(m.Voice.VoiceID, ShouldEqual, "BV115_streaming")
		So(m.ID, ShouldNotBeEmpty)
		So(m.Status, ShouldEqual, story.StatusStoryReady)

		Convey("场景按位置重新编号为 1..N", func() {
			So(len(m.Scenes), ShouldEqual, 6)
			for i, scene := range m.Scenes {
				So(scene.SceneNumber, ShouldEqual, i+1)
			}
		})

		Convey("分辨率由宽高比解析，不采用模型返回值", func() {
			So(m.Output.Resolution, ShouldEqual, "720x1280")
			So(m.Output.FrameRate, ShouldEqual, 30)
			So(m.Output.Captions.Enabled, ShouldBeTrue)
		})

		Convey("缺失的时间码按默认时长顺序补齐", func() {
			So(m.Scenes[0].Timecodes.Start, ShouldEqual, 0.0)
			So(m.Scenes[0].Timecodes.End, ShouldEqual, 5.0)
			So(m.Scenes[5].Timecodes.Start, ShouldEqual, 25.0)
			So(m.Scenes[5].Timecodes.End, ShouldEqual, 30.0)
		})

		Convey("JobState 同步到 story_ready", func() {
			snap := state.Snapshot()
			So(snap.Status, ShouldEqual, story.StatusStoryReady)
			So(snap.Manifest.ID, ShouldEqual, m.ID)
		})
	})
}

func TestScriptGeneratorBatched(t *testing.T) {
	Convey("长篇剧本分批生成", t, func() {
		provider := &fakeTextProvider{fn: func(call int, _ TextRequest) (string, error) {
			start := (call-1)*5 + 1
			return scenesJSON(start, 5, call == 1), nil
		}}
		state := NewJobState()
		gen := NewScriptGenerator(provider, state, nil, fastOpts())

		m, err := gen.Generate(context.Background(), ScriptRequest{
			Idea:        "深海探险队的一天",
			Tier:        story.Tier5Minutes, // 30 个场景，6 批
			AspectRatio: story.AspectLandscape,
		})

		So(err, ShouldBeNil)
		So(provider.calls, ShouldEqual, 6)
		So(len(m.Scenes), ShouldEqual, 30)
		So(m.Scenes[29].SceneNumber, ShouldEqual, 30)
		So(m.Output.Resolution, ShouldEqual, "1280x720")

		Convey("续批提示词携带上一批最后一句旁白", func() {
			So(provider.requests[0].Prompt, ShouldContainSubstring, "start of video")
			So(provider.requests[1].Prompt, ShouldContainSubstring, "scene 5 narration")
			So(provider.requests[5].Prompt, ShouldContainSubstring, "scene 25 narration")
		})

		Convey("只有首批要求标题与语音元数据", func() {
			So(provider.requests[0].SchemaHint, ShouldContainSubstring, "title")
			So(provider.requests[1].SchemaHint, ShouldNotContainSubstring, "title")
		})
	})
}

func TestScriptGeneratorFatalStops(t *testing.T) {
	Convey("致命错误立即终止整轮生成", t, func() {
		provider := &fakeTextProvider{fn: func(call int, _ TextRequest) (string, error) {
			if call == 3 {
				return "", NewQuotaError("generate_text", errors.New("quota exceeded"))
			}
			return scenesJSON((call-1)*5+1, 5, call == 1), nil
		}}
		state := NewJobState()
		gen := NewScriptGenerator(provider, state, nil, fastOpts())

		_, err := gen.Generate(context.Background(), ScriptRequest{
			Idea:        "荒漠中的机器人",
			Tier:        story.Tier5Minutes,
			AspectRatio: story.AspectPortrait,
		})

		So(err, ShouldNotBeNil)
		So(IsFatal(err), ShouldBeTrue)
		So(provider.calls, ShouldEqual, 3) // 致命错误不重试

		Convey("已累积的场景保留在 JobState 中", func() {
			snap := state.Snapshot()
			So(snap.Status, ShouldEqual, story.StatusFailed)
			So(snap.Error, ShouldNotBeEmpty)
			So(len(snap.Manifest.Scenes), ShouldEqual, 10)
		})
	})
}

func TestScriptGeneratorTransientKeepsPartial(t *testing.T) {
	Convey("重试额度耗尽时提前结束并保留已生成场景", t, func() {
		provider := &fakeTextProvider{fn: func(call int, _ TextRequest) (string, error) {
			if call >= 3 {
				return "", NewTransientError("generate_text", "connection reset", nil)
			}
			return scenesJSON((call-1)*5+1, 5, call == 1), nil
		}}
		state := NewJobState()
		gen := NewScriptGenerator(provider, state, nil, fastOpts())

		m, err := gen.Generate(context.Background(), ScriptRequest{
			Idea:        "雨夜的便利店",
			Tier:        story.Tier5Minutes,
			AspectRatio: story.AspectPortrait,
		})

		So(err, ShouldBeNil)
		So(len(m.Scenes), ShouldEqual, 10)
		So(m.Status, ShouldEqual, story.StatusStoryReady)
	})
}

func TestScriptGeneratorValidation(t *testing.T) {
	Convey("入参校验", t, func() {
		provider := &fakeTextProvider{fn: func(int, TextRequest) (string, error) {
			return scenesJSON(1, 6, true), nil
		}}
		gen := NewScriptGenerator(provider, NewJobState(), nil, fastOpts())

		Convey("空创意报错", func() {
			_, err := gen.Generate(context.Background(), ScriptRequest{
				Idea: "   ", Tier: story.Tier30Seconds, AspectRatio: story.AspectPortrait,
			})
			So(err, ShouldNotBeNil)
			So(provider.calls, ShouldEqual, 0)
		})

		Convey("未知时长档位报错", func() {
			_, err := gen.Generate(context.Background(), ScriptRequest{
				Idea: "一个故事", Tier: "2h", AspectRatio: story.AspectPortrait,
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "duration tier")
		})

		Convey("未知宽高比报错", func() {
			_, err := gen.Generate(context.Background(), ScriptRequest{
				Idea: "一个故事", Tier: story.Tier30Seconds, AspectRatio: "4:3",
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "aspect ratio")
		})
	})
}
