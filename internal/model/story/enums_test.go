package story

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDurationTierSceneCount(t *testing.T) {
	Convey("时长档位到目标场景数的映射", t, func() {
		cases := []struct {
			tier DurationTier
			want int
		}{
			{Tier30Seconds, 6},
			{Tier1Minute, 12},
			{Tier3Minutes, 15},
			{Tier5Minutes, 30},
			{Tier10Minutes, 60},
			{Tier20Minutes, 120},
			{Tier30Minutes, 180},
			{Tier60Minutes, 240},
		}
		for _, c := range cases {
			n, ok := c.tier.SceneCount()
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, c.want)
			So(c.tier.Valid(), ShouldBeTrue)
		}

		Convey("未知档位返回 false", func() {
			_, ok := DurationTier("2h").SceneCount()
			So(ok, ShouldBeFalse)
			So(DurationTier("2h").Valid(), ShouldBeFalse)
		})
	})
}

func TestAspectRatioResolution(t *testing.T) {
	Convey("宽高比到输出分辨率的映射", t, func() {
		So(AspectPortrait.Resolution(), ShouldEqual, "720x1280")
		So(AspectLandscape.Resolution(), ShouldEqual, "1280x720")
		So(AspectSquare.Resolution(), ShouldEqual, "1024x1024")

		Convey("未知宽高比回退到竖屏", func() {
			So(AspectRatio("4:3").Resolution(), ShouldEqual, "720x1280")
			So(AspectRatio("4:3").Valid(), ShouldBeFalse)
		})
	})
}

func TestStatusTerminal(t *testing.T) {
	Convey("终态判定", t, func() {
		So(StatusCompleted.Terminal(), ShouldBeTrue)
		So(StatusFailed.Terminal(), ShouldBeTrue)

		for _, s := range []Status{StatusCreated, StatusStoryReady, StatusImagesProcessing, StatusAudioProcessing, StatusAssembling} {
			So(s.Terminal(), ShouldBeFalse)
		}
	})
}
