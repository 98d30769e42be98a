package pipeline

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"fable/internal/model/story"
)

func TestJobStateSubscribe(t *testing.T) {
	Convey("JobState 订阅与通知", t, func() {
		state := NewJobState()

		Convey("注册后立即收到一次当前快照", func() {
			var got []Snapshot
			state.Subscribe(func(s Snapshot) { got = append(got, s) })

			So(len(got), ShouldEqual, 1)
			So(got[0].Status, ShouldEqual, story.StatusCreated)
		})

		Convey("每次变更都同步按序通知", func() {
			var got []Snapshot
			state.Subscribe(func(s Snapshot) { got = append(got, s) })

			state.SetStatus(story.StatusStoryReady)
			state.AddLog("images started")
			state.SetStatus(story.StatusImagesProcessing)

			So(len(got), ShouldEqual, 4) // 初始快照 + 3 次变更
			So(got[1].Status, ShouldEqual, story.StatusStoryReady)
			So(got[2].Logs[0].Message, ShouldEqual, "images started")
			So(got[3].Status, ShouldEqual, story.StatusImagesProcessing)
		})

		Convey("取消订阅后不再收到通知", func() {
			var count int
			unsub := state.Subscribe(func(Snapshot) { count++ })
			So(count, ShouldEqual, 1)

			unsub()
			state.SetStatus(story.StatusFailed)
			So(count, ShouldEqual, 1)
		})
	})
}

func TestJobStateUpdate(t *testing.T) {
	Convey("JobState.Update 浅合并更新", t, func() {
		state := NewJobState()

		Convey("nil 字段保持不变", func() {
			done, total := 3, 12
			state.Update(Patch{ImagesDone: &done, ImagesTotal: &total})
			state.AddLog("progress")

			url := "http://example.com/final.mp4"
			state.Update(Patch{VideoURL: &url})

			snap := state.Snapshot()
			So(snap.ImagesDone, ShouldEqual, 3)
			So(snap.ImagesTotal, ShouldEqual, 12)
			So(snap.VideoURL, ShouldEqual, url)
			So(len(snap.Logs), ShouldEqual, 1)
		})

		Convey("Fail 同时写入错误与 failed 状态", func() {
			state.Fail("quota exhausted")
			snap := state.Snapshot()
			So(snap.Status, ShouldEqual, story.StatusFailed)
			So(snap.Error, ShouldEqual, "quota exhausted")
		})

		Convey("快照中的日志切片是独立副本", func() {
			state.AddLog("first")
			snap := state.Snapshot()
			state.AddLog("second")

			So(len(snap.Logs), ShouldEqual, 1)
			So(len(state.Snapshot().Logs), ShouldEqual, 2)
		})
	})
}

func TestJobStateReset(t *testing.T) {
	Convey("JobState.Reset 清空状态但保留订阅关系", t, func() {
		state := NewJobState()

		var got []Snapshot
		state.Subscribe(func(s Snapshot) { got = append(got, s) })

		state.Fail("boom")
		state.Reset()

		last := got[len(got)-1]
		So(last.Status, ShouldEqual, story.StatusCreated)
		So(last.Error, ShouldBeEmpty)
		So(len(last.Logs), ShouldEqual, 0)

		// 订阅仍然有效
		before := len(got)
		state.SetStatus(story.StatusStoryReady)
		So(len(got), ShouldEqual, before+1)
	})
}
